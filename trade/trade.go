// Package trade defines the buy/sell execution records that feed the gain/loss
// calculation and parses them from the delimited text produced by trade sources.
package trade

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the wire format for trade timestamps (always UTC).
const TimeLayout = "2006-01-02 15:04:05"

// ErrUserID is returned for user ids that cannot be written into a row.
var ErrUserID = errors.New("user id must not contain commas or line breaks")

// CheckUserID reports whether id survives a round trip through Row and Parse.
func CheckUserID(id string) error {
	if strings.ContainsAny(id, ",\r\n") {
		return fmt.Errorf("%w: %q", ErrUserID, id)
	}
	return nil
}

type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

func (a Action) Valid() bool {
	return a == Buy || a == Sell
}

// Record is a single execution. Records are never modified once parsed; the
// matcher tracks remaining quantities separately, by input position.
type Record struct {
	Seq      int
	UserID   string
	Action   Action
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
	Time     time.Time
}

func (r Record) IsBuy() bool  { return r.Action == Buy }
func (r Record) IsSell() bool { return r.Action == Sell }

// Row renders the record in the format Parse accepts.
func (r Record) Row() string {
	return strings.Join([]string{
		r.UserID,
		string(r.Action),
		r.Symbol,
		fmt.Sprintf("%d", r.Quantity),
		r.Price.StringFixed(max(2, -r.Price.Exponent())),
		r.Time.UTC().Format(TimeLayout),
	}, ", ")
}

// Records is an ordered execution history.
type Records []Record

// Symbols returns the distinct symbols in first-seen order.
func (rs Records) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rs {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			out = append(out, r.Symbol)
		}
	}
	return out
}

// Text joins the records back into source text.
func (rs Records) Text() string {
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, r.Row())
	}
	return strings.Join(lines, "\n")
}
