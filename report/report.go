// Package report turns a matching result into the gain/loss payload returned
// to callers, and runs the source → parse → match pipeline for a request.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/gains/gains"
	"github.com/rustyeddy/gains/pkg/id"
	"github.com/rustyeddy/gains/trade"
)

// LotView is the wire form of a gains.Lot. Field names follow the long-form
// payload consumers already read.
type LotView struct {
	Symbol           string `json:"symbol"`
	Quantity         int64  `json:"quantity"`
	Price            string `json:"price"`
	TradeTime        string `json:"tradeTime"`
	QuantitySell     int64  `json:"quantitySell"`
	PriceSell        string `json:"priceSell,omitempty"`
	TradeTimeSell    string `json:"tradeTimeSell"`
	GainLoss         string `json:"gainLoss"`
	Realized         bool   `json:"realized"`
	PriceUnavailable bool   `json:"priceUnavailable,omitempty"`
}

type UnmatchedView struct {
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	PriceSell string `json:"priceSell"`
	TradeTime string `json:"tradeTime"`
}

// Report is the response body for one user and window. Trades is a pointer so
// the short form omits the field while the long form always carries a list,
// possibly empty.
type Report struct {
	ID            string          `json:"id"`
	User          string          `json:"user"`
	FromDate      string          `json:"fromDate"`
	ToDate        string          `json:"toDate"`
	TotalGainLoss string          `json:"totalGainLoss"`
	Trades        *[]LotView      `json:"trades,omitempty"`
	Unmatched     []UnmatchedView `json:"unmatched,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	GeneratedAt   string          `json:"generatedAt"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(gains.Places)
}

func price(d decimal.Decimal) string {
	return d.StringFixed(max(gains.Places, -d.Exponent()))
}

func stamp(t time.Time) string {
	return t.UTC().Format(trade.TimeLayout)
}

// Assemble builds the payload for res. warnings are the rendered parse errors
// for rows that were skipped.
func Assemble(user string, from, to time.Time, res *gains.Result, long bool, warnings []string) *Report {
	r := &Report{
		ID:            id.At(res.GeneratedAt),
		User:          user,
		FromDate:      stamp(from),
		ToDate:        stamp(to),
		TotalGainLoss: money(res.Total),
		Warnings:      warnings,
		GeneratedAt:   res.GeneratedAt.UTC().Format(time.RFC3339),
	}

	if long {
		lots := make([]LotView, 0, len(res.Lots))
		for _, l := range res.Lots {
			v := LotView{
				Symbol:           l.Symbol,
				Quantity:         l.Quantity,
				Price:            price(l.BuyPrice),
				TradeTime:        stamp(l.BuyTime),
				QuantitySell:     l.Quantity,
				TradeTimeSell:    stamp(l.SellTime),
				GainLoss:         money(l.GainLoss),
				Realized:         l.Realized,
				PriceUnavailable: l.PriceUnavailable,
			}
			if !l.PriceUnavailable {
				v.PriceSell = price(l.SellPrice)
			}
			lots = append(lots, v)
		}
		r.Trades = &lots
	}

	for _, u := range res.Unmatched {
		r.Unmatched = append(r.Unmatched, UnmatchedView{
			Symbol:    u.Symbol,
			Quantity:  u.Quantity,
			PriceSell: price(u.SellPrice),
			TradeTime: stamp(u.SellTime),
		})
	}
	return r
}
