// Package quote looks up current market prices. Lookups never fail loudly:
// every outcome is a Quote that is either available with a price or
// explicitly unavailable.
package quote

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// Quote is the tagged result of a price lookup. Price is only meaningful when
// Available is true.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Available bool
}

func Available(symbol string, price decimal.Decimal) Quote {
	return Quote{Symbol: symbol, Price: price, Available: true}
}

func Unavailable(symbol string) Quote {
	return Quote{Symbol: symbol}
}

// Oracle returns the current price for a symbol.
type Oracle interface {
	Quote(ctx context.Context, symbol string) Quote
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, symbol string) Quote

func (f Func) Quote(ctx context.Context, symbol string) Quote {
	return f(ctx, symbol)
}

// Static serves fixed prices. Symbols missing from the map are unavailable.
type Static map[string]decimal.Decimal

func (s Static) Quote(_ context.Context, symbol string) Quote {
	p, ok := s[strings.ToUpper(symbol)]
	if !ok {
		return Unavailable(symbol)
	}
	return Available(symbol, p)
}

// FetchAll quotes every distinct symbol with at most workers lookups in
// flight and returns once all of them have finished.
func FetchAll(ctx context.Context, o Oracle, symbols []string, workers int) map[string]Quote {
	if workers < 1 {
		workers = 1
	}

	var uniq []string
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if !seen[s] {
			seen[s] = true
			uniq = append(uniq, s)
		}
	}

	results := make([]Quote, len(uniq))
	p := pool.New().WithMaxGoroutines(workers)
	for i, sym := range uniq {
		p.Go(func() {
			results[i] = o.Quote(ctx, sym)
		})
	}
	p.Wait()

	out := make(map[string]Quote, len(uniq))
	for i, sym := range uniq {
		q := results[i]
		q.Symbol = sym
		out[sym] = q
	}
	return out
}
