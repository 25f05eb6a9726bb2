package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/gains/internal/metrics"
)

// DefaultBaseURL is finnhub's REST endpoint.
const DefaultBaseURL = "https://finnhub.io/api"

var (
	ErrNoToken = errors.New("no quote api token configured")
	ErrNoPrice = errors.New("no current price for symbol")
	errDecode  = errors.New("decode quote response")
	errLimited = errors.New("rate limit wait")
)

// StatusError is returned for non-200 upstream responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quote api error (status %d): %s", e.Code, e.Body)
}

// Config controls the finnhub client. Zero values fall back to DefaultConfig.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration // per attempt
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration

	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int

	CacheTTL time.Duration // 0 disables caching

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         5 * time.Second,
		Attempts:        3,
		Backoff:         200 * time.Millisecond,
		MaxBackoff:      2 * time.Second,
		RateLimit:       1, // finnhub free tier is 60/min
		Burst:           10,
		CacheTTL:        30 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = max(d.MaxBackoff, c.Backoff)
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	return c
}

// Client fetches current prices from a finnhub compatible quote service.
// It is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	group      singleflight.Group
	cache      *bigcache.BigCache
	logger     *slog.Logger
}

// quoteResponse is the subset of the finnhub /quote payload we read.
type quoteResponse struct {
	Current       json.Number `json:"c"`
	High          json.Number `json:"h"`
	Low           json.Number `json:"l"`
	Open          json.Number `json:"o"`
	PreviousClose json.Number `json:"pc"`
	Timestamp     int64       `json:"t"`
}

// NewClient creates a quote client. A nil logger uses slog.Default.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			// Per-attempt deadlines come from the context; this is a backstop.
			Timeout: cfg.Timeout * time.Duration(cfg.Attempts+1),
		},
		logger: logger.With("component", "quote"),
	}

	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "quote",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Only upstream failures trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNoPrice) ||
				errors.Is(err, errLimited) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("quote circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	})

	if cfg.CacheTTL > 0 {
		bc := bigcache.DefaultConfig(cfg.CacheTTL)
		bc.CleanWindow = cfg.CacheTTL
		bc.HardMaxCacheSize = 8
		bc.Verbose = false
		cache, err := bigcache.New(context.Background(), bc)
		if err != nil {
			return nil, fmt.Errorf("create quote cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// Close releases the cache.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Quote returns the current price for symbol, or Unavailable if it cannot be
// obtained within the configured attempts.
func (c *Client) Quote(ctx context.Context, symbol string) Quote {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return Unavailable(symbol)
	}

	if p, ok := c.cached(sym); ok {
		metrics.QuoteRequests.WithLabelValues("cached").Inc()
		return Available(sym, p)
	}

	if ctx.Err() != nil {
		metrics.QuoteRequests.WithLabelValues("cancelled").Inc()
		return Unavailable(sym)
	}

	// The shared lookup outlives any single caller so one cancellation cannot
	// fail the others waiting on the same symbol.
	ch := c.group.DoChan(sym, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout())
		defer cancel()
		price, err := c.lookup(lctx, sym)
		if err == nil {
			c.store(sym, price)
		}
		return price, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		metrics.QuoteRequests.WithLabelValues("cancelled").Inc()
		c.logger.DebugContext(ctx, "quote abandoned by caller", "symbol", sym, "error", ctx.Err())
		return Unavailable(sym)
	case res = <-ch:
	}

	v, err := res.Val, res.Err
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(resultLabel(err)).Inc()
		c.logger.WarnContext(ctx, "quote unavailable", "symbol", sym, "error", err)
		return Unavailable(sym)
	}

	price := v.(decimal.Decimal)
	metrics.QuoteRequests.WithLabelValues("ok").Inc()
	return Available(sym, price)
}

// lookupTimeout bounds one shared lookup: every attempt plus the backoff
// between them.
func (c *Client) lookupTimeout() time.Duration {
	n := time.Duration(c.cfg.Attempts)
	return c.cfg.Timeout*n + c.cfg.MaxBackoff*n
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrNoPrice):
		return "no_price"
	case errors.Is(err, errLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unavailable"
	}
}

func (c *Client) lookup(ctx context.Context, sym string) (decimal.Decimal, error) {
	if c.token == "" {
		return decimal.Decimal{}, ErrNoToken
	}

	start := time.Now()
	defer func() { metrics.QuoteLatency.Observe(time.Since(start).Seconds()) }()

	v, err := c.breaker.Execute(func() (any, error) {
		return c.fetchWithRetry(ctx, sym)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.(decimal.Decimal), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, sym string) (decimal.Decimal, error) {
	backoff := c.cfg.Backoff

	var (
		lastErr error
		tries   int
	)
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		tries = attempt
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return decimal.Decimal{}, fmt.Errorf("%w: %w", errLimited, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		price, err := c.fetch(attemptCtx, sym)
		cancel()
		if err == nil {
			return price, nil
		}
		lastErr = err

		if attempt == c.cfg.Attempts || !retryable(ctx, err) {
			break
		}
		c.logger.DebugContext(ctx, "retrying quote", "symbol", sym, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return decimal.Decimal{}, fmt.Errorf("quote cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}

	return decimal.Decimal{}, fmt.Errorf("quote %s failed after %d attempt(s): %w", sym, tries, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, ErrNoPrice) || errors.Is(err, errDecode) {
		return false
	}
	// Transport failures, including per-attempt timeouts.
	return true
}

func (c *Client) fetch(ctx context.Context, sym string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", sym)
	params.Set("token", c.token)
	apiURL := fmt.Sprintf("%s/v1/quote?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("execute request: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Decimal{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", errDecode, err)
	}
	if qr.Current == "" {
		return decimal.Decimal{}, ErrNoPrice
	}

	price, err := decimal.NewFromString(qr.Current.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q: %v", errDecode, qr.Current, err)
	}
	// finnhub answers 0 for symbols it does not know.
	if !price.IsPositive() {
		return decimal.Decimal{}, ErrNoPrice
	}
	return price, nil
}

// redact strips the query string, and with it the api token, from transport
// errors before they reach logs.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			ue.URL = u.String()
		}
	}
	return err
}

func (c *Client) cached(sym string) (decimal.Decimal, bool) {
	if c.cache == nil {
		return decimal.Decimal{}, false
	}
	b, err := c.cache.Get(sym)
	if err != nil {
		return decimal.Decimal{}, false
	}
	p, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return p, true
}

func (c *Client) store(sym string, price decimal.Decimal) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(sym, []byte(price.String())); err != nil {
		c.logger.Debug("quote cache set failed", "symbol", sym, "error", err)
	}
}
