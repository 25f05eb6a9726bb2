package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rustyeddy/gains/gains"
	"github.com/rustyeddy/gains/internal/metrics"
	"github.com/rustyeddy/gains/source"
	"github.com/rustyeddy/gains/trade"
)

// DefaultFrom is the window start used when a request gives none.
const DefaultFrom = "2021-01-01 01:00:00"

const dateLayout = "2006-01-02"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrSource         = errors.New("trade source failed")
)

// Request is the caller's view of a report. Empty From and To fall back to
// DefaultFrom and the current instant.
type Request struct {
	User string
	From string
	To   string
	Long bool
}

type Service struct {
	source  source.Source
	matcher *gains.Matcher
	now     func() time.Time
	logger  *slog.Logger
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(src source.Source, m *gains.Matcher, opts ...ServiceOption) *Service {
	s := &Service{
		source:  src,
		matcher: m,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate fetches, parses and matches the user's trades for the window.
// A failing source is reported as ErrSource and never yields a partial report.
func (s *Service) Generate(ctx context.Context, req Request) (*Report, error) {
	from, to, err := s.window(req)
	if err != nil {
		metrics.Reports.WithLabelValues("invalid").Inc()
		return nil, err
	}

	log := s.logger.With("user", req.User, "from", stamp(from), "to", stamp(to))

	text, err := s.source.Trades(ctx, req.User, from, to)
	if err != nil {
		metrics.Reports.WithLabelValues("source_error").Inc()
		log.Error("trade source failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}

	records, perrs := trade.Parse(text)
	warnings := make([]string, 0, len(perrs))
	for _, pe := range perrs {
		warnings = append(warnings, pe.Error())
		log.Warn("skipping trade row", "line", pe.Line, "err", pe.Err)
	}
	metrics.ParseWarnings.Add(float64(len(perrs)))
	if len(warnings) == 0 {
		warnings = nil
	}

	res, err := s.matcher.Match(ctx, records)
	if err != nil {
		metrics.Reports.WithLabelValues("match_error").Inc()
		return nil, fmt.Errorf("match trades: %w", err)
	}

	unavailable := 0
	for _, l := range res.Lots {
		if l.PriceUnavailable {
			unavailable++
		}
	}
	metrics.UnavailableLots.Add(float64(unavailable))
	metrics.Reports.WithLabelValues("ok").Inc()

	log.Info("report generated",
		"trades", len(records),
		"lots", len(res.Lots),
		"unavailable", unavailable,
		"total", money(res.Total),
	)
	return Assemble(req.User, from, to, res, req.Long, warnings), nil
}

func (s *Service) window(req Request) (time.Time, time.Time, error) {
	if strings.TrimSpace(req.User) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	if err := trade.CheckUserID(req.User); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	from, err := ParseDate(req.From, DefaultFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fromDate: %v", ErrInvalidRequest, err)
	}

	var to time.Time
	if strings.TrimSpace(req.To) == "" {
		to = s.now().UTC().Truncate(time.Second)
	} else if to, err = ParseDate(req.To, ""); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: toDate: %v", ErrInvalidRequest, err)
	} else if len(strings.TrimSpace(req.To)) == len(dateLayout) {
		// A bare end date covers the whole day.
		to = to.Add(24*time.Hour - time.Second)
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fromDate %s is after toDate %s",
			ErrInvalidRequest, stamp(from), stamp(to))
	}
	return from, to, nil
}

// ParseDate reads YYYY-MM-DD or YYYY-MM-DD HH:MM:SS (UTC). An empty s parses
// def instead.
func ParseDate(s, def string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = def
	}
	if len(s) == len(dateLayout) {
		return time.ParseInLocation(dateLayout, s, time.UTC)
	}
	return trade.ParseTime(s)
}
