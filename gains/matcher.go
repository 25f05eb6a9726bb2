package gains

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/gains/quote"
	"github.com/rustyeddy/gains/trade"
)

// DefaultWorkers bounds concurrent price lookups for open positions.
const DefaultWorkers = 4

// Matcher pairs sells with earlier buys in input order (FIFO) and values the
// remaining open quantity through an Oracle.
type Matcher struct {
	oracle         quote.Oracle
	now            func() time.Time
	workers        int
	reportOversell bool
	logger         *slog.Logger

	// noIndex disables the per-symbol early exit; results must not change.
	noIndex bool
}

type Option func(*Matcher)

// WithClock fixes the instant used as the sell time of open lots.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithOversellReport records sell quantity that finds no earlier buy in
// Result.Unmatched. By default that quantity is dropped silently.
func WithOversellReport(on bool) Option {
	return func(m *Matcher) { m.reportOversell = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewMatcher(oracle quote.Oracle, opts ...Option) *Matcher {
	m := &Matcher{
		oracle:  oracle,
		now:     time.Now,
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.oracle == nil {
		m.oracle = quote.Static(nil)
	}
	return m
}

// ledger holds the unmatched quantity of every record by input position, so
// the records themselves are never modified.
type ledger []int64

func newLedger(records trade.Records) ledger {
	l := make(ledger, len(records))
	for i, r := range records {
		l[i] = r.Quantity
	}
	return l
}

// symbolIndex is the remaining unmatched buy quantity per symbol.
type symbolIndex map[string]int64

func newSymbolIndex(records trade.Records) symbolIndex {
	idx := make(symbolIndex)
	for _, r := range records {
		if r.IsBuy() {
			idx[r.Symbol] += r.Quantity
		}
	}
	return idx
}

// Match runs the full reconciliation: realized lots first, in sell order,
// then one unrealized lot per buy that still has quantity left.
func (m *Matcher) Match(ctx context.Context, records trade.Records) (*Result, error) {
	res := &Result{
		GeneratedAt: m.now().UTC(),
		Total:       decimal.Zero,
	}

	remaining := newLedger(records)
	res.Lots, res.Unmatched = m.matchClosed(records, remaining)

	open, err := m.valueOpen(ctx, records, remaining, res.GeneratedAt)
	if err != nil {
		return nil, err
	}
	res.Lots = append(res.Lots, open...)

	for _, l := range res.Lots {
		if !l.PriceUnavailable {
			res.Total = res.Total.Add(l.GainLoss)
		}
	}
	return res, nil
}

func (m *Matcher) matchClosed(records trade.Records, remaining ledger) ([]Lot, []Unmatched) {
	var (
		lots      []Lot
		unmatched []Unmatched
	)
	index := newSymbolIndex(records)

	for t, sell := range records {
		if !sell.IsSell() {
			continue
		}

		for u := 0; u < t && remaining[t] > 0; u++ {
			if !m.noIndex && index[sell.Symbol] <= 0 {
				break
			}
			buy := records[u]
			if !buy.IsBuy() || buy.Symbol != sell.Symbol || remaining[u] <= 0 {
				continue
			}

			qty := min(remaining[t], remaining[u])
			if qty <= 0 {
				continue
			}
			remaining[t] -= qty
			remaining[u] -= qty
			index[sell.Symbol] -= qty

			lots = append(lots, Lot{
				Symbol:    sell.Symbol,
				BuyPrice:  buy.Price,
				BuyTime:   buy.Time,
				Quantity:  qty,
				SellPrice: sell.Price,
				SellTime:  sell.Time,
				GainLoss:  GainLoss(qty, buy.Price, sell.Price),
				Realized:  true,
			})
		}

		if remaining[t] > 0 {
			m.logger.Debug("sell exceeds prior buys",
				"symbol", sell.Symbol, "time", sell.Time, "unmatched", remaining[t])
			if m.reportOversell {
				unmatched = append(unmatched, Unmatched{
					Symbol:    sell.Symbol,
					Quantity:  remaining[t],
					SellPrice: sell.Price,
					SellTime:  sell.Time,
				})
			}
		}
	}
	return lots, unmatched
}

func (m *Matcher) valueOpen(ctx context.Context, records trade.Records, remaining ledger, at time.Time) ([]Lot, error) {
	var (
		open    []int
		symbols []string
	)
	for i, r := range records {
		if r.IsBuy() && remaining[i] > 0 {
			open = append(open, i)
			symbols = append(symbols, r.Symbol)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quotes := quote.FetchAll(ctx, m.oracle, symbols, m.workers)

	lots := make([]Lot, 0, len(open))
	for _, i := range open {
		buy, qty := records[i], remaining[i]
		lot := Lot{
			Symbol:   buy.Symbol,
			BuyPrice: buy.Price,
			BuyTime:  buy.Time,
			Quantity: qty,
			SellTime: at,
		}

		q := quotes[buy.Symbol]
		if q.Available {
			lot.SellPrice = q.Price
			lot.GainLoss = GainLoss(qty, buy.Price, q.Price)
		} else {
			lot.PriceUnavailable = true
			lot.SellPrice = decimal.Zero
			lot.GainLoss = decimal.Zero
		}
		lots = append(lots, lot)
	}
	return lots, nil
}
