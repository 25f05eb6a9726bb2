// Package source provides the raw trade history for a user and date window.
package source

import (
	"context"
	"time"
)

// Source returns a user's trades as delimited text, one execution per row,
// in the format trade.Parse reads. An unknown user yields "" and no error.
//
// Implementations are expected to return only trades inside [from, to], in
// chronological order.
type Source interface {
	Trades(ctx context.Context, username string, from, to time.Time) (string, error)
}

// Func adapts a function to the Source interface.
type Func func(ctx context.Context, username string, from, to time.Time) (string, error)

func (f Func) Trades(ctx context.Context, username string, from, to time.Time) (string, error) {
	return f(ctx, username, from, to)
}
