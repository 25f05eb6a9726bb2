// Package api exposes the gain/loss report and the users directory over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/gains/internal/metrics"
	"github.com/rustyeddy/gains/report"
	"github.com/rustyeddy/gains/users"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Reports *report.Service
	Users   *users.Store // nil disables /api/users
	DB      Pinger       // nil makes /healthz always ok
	Logger  *slog.Logger
	Long    bool // default for the long query parameter
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine. Callers set gin's mode beforehand.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(d.Logger))

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/gains/:username", h.gains)

	if d.Users != nil {
		u := api.Group("/users")
		u.GET("", h.listUsers)
		u.POST("", h.createUser)
		u.GET("/:user_id", h.getUser)
		u.PATCH("/:user_id", h.updateUser)
		u.DELETE("/:user_id", h.deleteUser)
	}
	return r
}

func (h *handler) health(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.PingContext(c.Request.Context()); err != nil {
			h.Logger.Error("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) gains(c *gin.Context) {
	long := h.Long
	if v := c.Query("long"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, h.Logger, fmt.Errorf("%w: long must be a boolean", report.ErrInvalidRequest))
			return
		}
		long = b
	}

	rep, err := h.Reports.Generate(c.Request.Context(), report.Request{
		User: c.Param("username"),
		From: c.Query("fromDate"),
		To:   c.Query("toDate"),
		Long: long,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func userID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadID, c.Param("user_id"))
	}
	return id, nil
}

func (h *handler) listUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) getUser(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) createUser(c *gin.Context) {
	var u users.User
	if err := c.ShouldBindJSON(&u); err != nil {
		writeError(c, h.Logger, fmt.Errorf("%w: %v", report.ErrInvalidRequest, err))
		return
	}
	created, err := h.Users.Create(c.Request.Context(), u)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handler) updateUser(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	var p users.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, h.Logger, fmt.Errorf("%w: %v", report.ErrInvalidRequest, err))
		return
	}
	u, err := h.Users.Update(c.Request.Context(), id, p)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) deleteUser(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
