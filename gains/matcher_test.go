package gains

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gains/quote"
	"github.com/rustyeddy/gains/trade"
)

var frozen = time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

func parse(t *testing.T, text string) trade.Records {
	t.Helper()
	recs, warnings := trade.Parse(text)
	require.Empty(t, warnings)
	return recs
}

func newMatcher(o quote.Oracle, opts ...Option) *Matcher {
	opts = append([]Option{WithClock(func() time.Time { return frozen })}, opts...)
	return NewMatcher(o, opts...)
}

func prices(kv ...string) quote.Static {
	s := quote.Static{}
	for i := 0; i+1 < len(kv); i += 2 {
		s[kv[i]] = decimal.RequireFromString(kv[i+1])
	}
	return s
}

func TestMatchEmpty(t *testing.T) {
	t.Parallel()

	res, err := newMatcher(nil).Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Lots)
	assert.Equal(t, "0.00", res.Total.StringFixed(2))
	assert.Equal(t, frozen, res.GeneratedAt)
}

func TestMatchExact(t *testing.T) {
	t.Parallel()

	recs := parse(t, `12345, buy, GME, 5, 20.99, 2020-12-21 15:45:24
12345, sell, GME, 5, 145.04, 2021-01-26 18:34:12`)

	res, err := newMatcher(prices()).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 1)

	lot := res.Lots[0]
	assert.Equal(t, "GME", lot.Symbol)
	assert.Equal(t, int64(5), lot.Quantity)
	assert.True(t, lot.Realized)
	assert.Equal(t, "20.99", lot.BuyPrice.StringFixed(2))
	assert.Equal(t, "145.04", lot.SellPrice.StringFixed(2))
	assert.Equal(t, recs[0].Time, lot.BuyTime)
	assert.Equal(t, recs[1].Time, lot.SellTime)
	assert.Equal(t, "620.25", lot.GainLoss.StringFixed(2))
	assert.Equal(t, "620.25", res.Total.StringFixed(2))
}

func TestMatchSplitAcrossBuys(t *testing.T) {
	t.Parallel()

	recs := parse(t, `12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, buy, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`)

	res, err := newMatcher(prices("AAPL", "125.00")).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 3)

	a, b, open := res.Lots[0], res.Lots[1], res.Lots[2]
	assert.Equal(t, int64(5), a.Quantity)
	assert.Equal(t, "67.00", a.GainLoss.StringFixed(2))
	assert.Equal(t, int64(1), b.Quantity)
	assert.Equal(t, "-5.11", b.GainLoss.StringFixed(2))

	assert.False(t, open.Realized)
	assert.False(t, open.PriceUnavailable)
	assert.Equal(t, int64(9), open.Quantity)
	assert.Equal(t, "95.11", open.BuyPrice.StringFixed(2))
	assert.Equal(t, "125.00", open.SellPrice.StringFixed(2))
	assert.Equal(t, frozen, open.SellTime)
	assert.Equal(t, "269.01", open.GainLoss.StringFixed(2))

	assert.Equal(t, "330.90", res.Total.StringFixed(2))
	assert.Equal(t, "61.89", res.RealizedTotal().StringFixed(2))
	assert.Equal(t, "269.01", res.UnrealizedTotal().StringFixed(2))
}

func TestMatchOversell(t *testing.T) {
	t.Parallel()

	text := `12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, sell, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`

	t.Run("dropped by default", func(t *testing.T) {
		res, err := newMatcher(prices("AAPL", "125.00")).Match(context.Background(), parse(t, text))
		require.NoError(t, err)
		require.Len(t, res.Lots, 1)
		assert.Equal(t, int64(5), res.Lots[0].Quantity)
		assert.Equal(t, "92.55", res.Total.StringFixed(2))
		assert.Empty(t, res.Unmatched)
	})

	t.Run("reported when enabled", func(t *testing.T) {
		res, err := newMatcher(prices(), WithOversellReport(true)).Match(context.Background(), parse(t, text))
		require.NoError(t, err)
		require.Len(t, res.Lots, 1)
		require.Len(t, res.Unmatched, 2)
		assert.Equal(t, int64(5), res.Unmatched[0].Quantity)
		assert.Equal(t, "95.11", res.Unmatched[0].SellPrice.StringFixed(2))
		assert.Equal(t, int64(6), res.Unmatched[1].Quantity)
		assert.Equal(t, "92.55", res.Total.StringFixed(2))
	})
}

func TestMatchSellsWithoutBuys(t *testing.T) {
	t.Parallel()

	recs := parse(t, `12345, sell, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`)

	res, err := newMatcher(prices()).Match(context.Background(), recs)
	require.NoError(t, err)
	assert.Empty(t, res.Lots)
	assert.True(t, res.Total.IsZero())
}

func TestMatchSellBeforeBuyInInput(t *testing.T) {
	t.Parallel()

	recs := parse(t, `1, sell, AAPL, 5, 100.00, 2020-06-05 15:21:35
1, buy, AAPL, 5, 90.00, 2020-06-08 12:12:51`)

	res, err := newMatcher(prices("AAPL", "95.00")).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 1)
	assert.False(t, res.Lots[0].Realized)
	assert.Equal(t, "25.00", res.Total.StringFixed(2))
}

func TestMatchSeveralSellsShareOneBuy(t *testing.T) {
	t.Parallel()

	recs := parse(t, `1, buy, MSFT, 10, 200.00, 2021-01-01 10:00:00
1, sell, MSFT, 3, 210.00, 2021-01-02 10:00:00
1, sell, MSFT, 4, 190.00, 2021-01-03 10:00:00`)

	res, err := newMatcher(prices("MSFT", "250.00")).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 3)
	assert.Equal(t, int64(3), res.Lots[0].Quantity)
	assert.Equal(t, "30.00", res.Lots[0].GainLoss.StringFixed(2))
	assert.Equal(t, int64(4), res.Lots[1].Quantity)
	assert.Equal(t, "-40.00", res.Lots[1].GainLoss.StringFixed(2))
	assert.Equal(t, int64(3), res.Lots[2].Quantity)
	assert.Equal(t, "150.00", res.Lots[2].GainLoss.StringFixed(2))
	assert.Equal(t, "140.00", res.Total.StringFixed(2))
}

func TestMatchOpenPositionsQuoteEachSymbolOnce(t *testing.T) {
	t.Parallel()

	var calls int32
	o := quote.Func(func(_ context.Context, symbol string) quote.Quote {
		atomic.AddInt32(&calls, 1)
		return quote.Available(symbol, decimal.RequireFromString("100.00"))
	})

	recs := parse(t, `12345, buy, AAPL, 5, 95.11, 2020-06-05 15:21:35
12345, buy, AAPL, 5, 90.00, 2020-06-08 12:12:51`)

	res, err := newMatcher(o).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 2)
	assert.Equal(t, "24.45", res.Lots[0].GainLoss.StringFixed(2))
	assert.Equal(t, "50.00", res.Lots[1].GainLoss.StringFixed(2))
	assert.Equal(t, "74.45", res.Total.StringFixed(2))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMatchUnavailablePriceExcludedFromTotal(t *testing.T) {
	t.Parallel()

	recs := parse(t, `12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, buy, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`)

	res, err := newMatcher(prices()).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 3)

	open := res.Lots[2]
	assert.True(t, open.PriceUnavailable)
	assert.Equal(t, int64(9), open.Quantity)
	assert.True(t, open.GainLoss.IsZero())
	assert.Equal(t, "61.89", res.Total.StringFixed(2))
}

func TestMatchDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	recs := parse(t, `1, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
1, sell, AAPL, 3, 90.00, 2020-06-08 12:12:51`)
	before := make(trade.Records, len(recs))
	copy(before, recs)

	_, err := newMatcher(prices("AAPL", "1.00")).Match(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, before, recs)
}

func TestMatchDeterministic(t *testing.T) {
	t.Parallel()

	recs := parse(t, `12345, buy, GME, 5, 20.99, 2020-12-21 15:45:24
12345, sell, GME, 5, 145.04, 2021-01-26 18:34:12
12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, buy, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`)

	m := newMatcher(prices("AAPL", "131.97", "GME", "40.00"))
	first, err := m.Match(context.Background(), recs)
	require.NoError(t, err)
	second, err := m.Match(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMatchRoundsEachLotBeforeSumming(t *testing.T) {
	t.Parallel()

	var rows []string
	for i := 0; i < 3; i++ {
		rows = append(rows, fmt.Sprintf("1, buy, X, 1, 10.000, 2021-01-0%d 10:00:00", i+1))
		rows = append(rows, fmt.Sprintf("1, sell, X, 1, 10.005, 2021-01-0%d 11:00:00", i+1))
	}
	recs := parse(t, strings.Join(rows, "\n"))

	res, err := newMatcher(prices()).Match(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, res.Lots, 3)

	raw := decimal.Zero
	for _, l := range res.Lots {
		assert.Equal(t, "0.01", l.GainLoss.StringFixed(2))
		raw = raw.Add(l.SellPrice.Sub(l.BuyPrice).Mul(decimal.NewFromInt(l.Quantity)))
	}

	assert.Equal(t, "0.03", res.Total.StringFixed(2))
	assert.Equal(t, "0.02", raw.Round(2).StringFixed(2))

	diff := res.Total.Sub(raw.Round(2)).Abs()
	bound := decimal.RequireFromString("0.005").Mul(decimal.NewFromInt(int64(len(res.Lots))))
	assert.True(t, diff.LessThanOrEqual(bound))
}

func TestMatchCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs := parse(t, `1, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23`)
	_, err := newMatcher(prices("AAPL", "1.00")).Match(ctx, recs)
	assert.ErrorIs(t, err, context.Canceled)
}

// randomHistory builds a reproducible trade history across a few symbols.
func randomHistory(r *rand.Rand, n int) trade.Records {
	syms := []string{"AAPL", "GME", "MSFT"}
	recs := make(trade.Records, n)
	start := time.Date(2020, 1, 1, 9, 30, 0, 0, time.UTC)
	for i := range recs {
		action := trade.Buy
		if r.Intn(2) == 0 {
			action = trade.Sell
		}
		recs[i] = trade.Record{
			Seq:      i,
			UserID:   "1",
			Action:   action,
			Symbol:   syms[r.Intn(len(syms))],
			Quantity: int64(r.Intn(12)),
			Price:    decimal.New(int64(1000+r.Intn(20000)), -2),
			Time:     start.Add(time.Duration(i) * time.Hour),
		}
	}
	return recs
}

func TestMatchIndexDoesNotChangeResults(t *testing.T) {
	t.Parallel()

	o := prices("AAPL", "150.00", "GME", "20.00", "MSFT", "300.00")
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		recs := randomHistory(r, 1+r.Intn(40))

		with := newMatcher(o)
		without := newMatcher(o)
		without.noIndex = true

		a, err := with.Match(context.Background(), recs)
		require.NoError(t, err)
		b, err := without.Match(context.Background(), recs)
		require.NoError(t, err)
		require.Equal(t, a, b, "history %d", i)
	}
}

func TestMatchQuantityInvariants(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		recs := randomHistory(r, 1+r.Intn(40))
		res, err := newMatcher(prices()).Match(context.Background(), recs)
		require.NoError(t, err)

		bought := map[string]int64{}
		for _, rec := range recs {
			if rec.IsBuy() {
				bought[rec.Symbol] += rec.Quantity
			}
		}

		used := map[string]int64{}
		for _, l := range res.Lots {
			require.Positive(t, l.Quantity)
			used[l.Symbol] += l.Quantity
		}
		// Every bought share ends up in exactly one lot, sold or open.
		for sym, q := range bought {
			assert.Equal(t, q, used[sym], "history %d symbol %s", i, sym)
		}
	}
}
