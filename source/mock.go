package source

import (
	"context"
	"sort"
	"time"
)

// Columns: user_id, buy/sell, symbol, quantity, price, timestamp (UTC).
var fixtures = map[string]string{
	// Buy and sell the exact same amount.
	"john_simple": `12345, buy, GME, 5, 20.99, 2020-12-21 15:45:24
12345, sell, GME, 5, 145.04, 2021-01-26 18:34:12`,

	// One sell spans two buys.
	"tim_apple": `12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, buy, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`,

	// Sells far more than was ever bought.
	"peter_sellers": `12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, sell, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`,

	// Only sells in range.
	"jackie_cellars": `12345, sell, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`,

	"johnny_single": `12345, buy, AAPL, 5, 95.11, 2020-06-05 15:21:35`,

	"johnny_double": `12345, buy, AAPL, 5, 95.11, 2020-06-05 15:21:35
12345, buy, AAPL, 5, 90.00, 2020-06-08 12:12:51`,

	// One sell spans two buys, plus a second stock. Note the rows are not in
	// chronological order.
	"tim_apple_senior": `12345, buy, GME, 5, 20.99, 2020-12-21 15:45:24
12345, sell, GME, 5, 145.04, 2021-01-26 18:34:12
12345, buy, AAPL, 5, 76.60, 2020-01-02 16:01:23
12345, buy, AAPL, 10, 95.11, 2020-06-05 15:21:35
12345, sell, AAPL, 6, 90.00, 2020-06-08 12:12:51`,
}

// Mock serves the built-in demo users. It returns each user's full history
// regardless of the requested window and does not reorder rows, so it does not
// honour the Source contract; use SQL for real data.
type Mock struct{}

func (Mock) Trades(_ context.Context, username string, _, _ time.Time) (string, error) {
	return fixtures[username], nil
}

// Users lists the demo usernames.
func (Mock) Users() []string {
	names := make([]string, 0, len(fixtures))
	for n := range fixtures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
