// Package gains reconciles sell executions against earlier buys and values
// whatever is still held at the current market price.
package gains

import (
	"time"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places every lot gain/loss is rounded to.
const Places = 2

// Lot is a slice of a buy matched either against a sell (realized) or
// against a current price (unrealized).
type Lot struct {
	Symbol    string
	BuyPrice  decimal.Decimal
	BuyTime   time.Time
	Quantity  int64
	SellPrice decimal.Decimal
	SellTime  time.Time
	GainLoss  decimal.Decimal

	Realized bool
	// PriceUnavailable marks an open lot that could not be valued. Its
	// GainLoss is zero and it does not count toward the total.
	PriceUnavailable bool
}

// Unmatched is sell quantity with no earlier buy left to match it against.
type Unmatched struct {
	Symbol    string
	Quantity  int64
	SellPrice decimal.Decimal
	SellTime  time.Time
}

// Result is the output of a matching pass.
type Result struct {
	Lots        []Lot
	Total       decimal.Decimal
	Unmatched   []Unmatched
	GeneratedAt time.Time
}

// RealizedTotal sums realized lot gains.
func (r *Result) RealizedTotal() decimal.Decimal {
	return r.sum(func(l Lot) bool { return l.Realized })
}

// UnrealizedTotal sums valued open lots.
func (r *Result) UnrealizedTotal() decimal.Decimal {
	return r.sum(func(l Lot) bool { return !l.Realized && !l.PriceUnavailable })
}

func (r *Result) sum(keep func(Lot) bool) decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lots {
		if keep(l) {
			total = total.Add(l.GainLoss)
		}
	}
	return total
}

// GainLoss is quantity × (sell − buy) rounded to Places.
func GainLoss(qty int64, buy, sell decimal.Decimal) decimal.Decimal {
	return sell.Sub(buy).Mul(decimal.NewFromInt(qty)).Round(Places)
}
