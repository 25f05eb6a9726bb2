package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/gains/report"
	"github.com/rustyeddy/gains/users"
)

var errBadID = errors.New("user_id must be an integer")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var se *users.StoreError
	switch {
	case errors.Is(err, report.ErrInvalidRequest), errors.Is(err, errBadID):
		return http.StatusBadRequest
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, report.ErrSource):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		logger.ErrorContext(c.Request.Context(), "request failed",
			"request_id", c.GetString(requestIDKey),
			"status", status,
			"err", err,
		)
		switch status {
		case http.StatusBadGateway:
			msg = report.ErrSource.Error()
		default:
			msg = http.StatusText(status)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
