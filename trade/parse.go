package trade

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldCount is the number of comma separated fields in a trade row:
// userId, action, symbol, quantity, price, tradeTime.
const FieldCount = 6

var (
	ErrFieldCount = errors.New("wrong number of fields")
	ErrAction     = errors.New("action must be buy or sell")
	ErrSymbol     = errors.New("symbol is required")
	ErrQuantity   = errors.New("quantity must be a non-negative integer")
	ErrPrice      = errors.New("price must be a non-negative decimal")
	ErrTime       = errors.New("trade time must be YYYY-MM-DD HH:MM:SS")
)

// ParseError describes a row that was skipped.
type ParseError struct {
	Line int // 1-based
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse turns raw trade text into records. Empty input yields no records and
// no warnings. Malformed rows are skipped and reported; they never abort the
// parse.
func Parse(data string) (Records, []*ParseError) {
	var (
		out      Records
		warnings []*ParseError
	)
	if strings.TrimSpace(data) == "" {
		return out, nil
	}

	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := ParseRow(line)
		if err != nil {
			warnings = append(warnings, &ParseError{Line: i + 1, Text: line, Err: err})
			continue
		}
		rec.Seq = len(out)
		out = append(out, rec)
	}
	return out, warnings
}

// ParseRow parses a single row. Seq is left at zero.
func ParseRow(line string) (Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) != FieldCount {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), FieldCount)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	action := Action(strings.ToLower(fields[1]))
	if !action.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrAction, fields[1])
	}

	symbol := strings.ToUpper(fields[2])
	if symbol == "" {
		return Record{}, ErrSymbol
	}

	if !digits(fields[3]) {
		return Record{}, fmt.Errorf("%w: %q", ErrQuantity, fields[3])
	}
	qty, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q", ErrQuantity, fields[3])
	}

	price, err := ParsePrice(fields[4])
	if err != nil {
		return Record{}, err
	}

	ts, err := ParseTime(fields[5])
	if err != nil {
		return Record{}, err
	}

	return Record{
		UserID:   fields[0],
		Action:   action,
		Symbol:   symbol,
		Quantity: qty,
		Price:    price,
		Time:     ts,
	}, nil
}

// ParsePrice reads a non-negative decimal price. Whole numbers are widened to
// two fraction digits; extra precision is kept.
func ParsePrice(s string) (decimal.Decimal, error) {
	whole, frac, dot := strings.Cut(s, ".")
	if !digits(whole) || (dot && !digits(frac)) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrPrice, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrPrice, s)
	}
	if d.Exponent() > -2 {
		d = d.Round(2)
	}
	return d, nil
}

// ParseTime accepts TimeLayout or RFC 3339 and returns a UTC time.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTime, s)
}

// digits reports whether s is one or more ASCII digits, with no sign or
// exponent.
func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
