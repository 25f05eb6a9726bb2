package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rustyeddy/gains/trade"
)

// SQL reads trades from the trades table created by internal/db.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// Trades returns the user's trades executed within [from, to], oldest first.
// Rows executed at the same instant keep their insertion order.
func (s *SQL) Trades(ctx context.Context, username string, from, to time.Time) (string, error) {
	recs, err := s.List(ctx, username, from, to)
	if err != nil {
		return "", err
	}
	return recs.Text(), nil
}

// List is Trades without the text rendering.
func (s *SQL) List(ctx context.Context, username string, from, to time.Time) (trade.Records, error) {
	if err := trade.CheckUserID(username); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, action, symbol, quantity, price, trade_time
		FROM trades
		WHERE username = ? AND trade_time >= ? AND trade_time <= ?
		ORDER BY trade_time ASC, id ASC`,
		username, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out trade.Records
	for rows.Next() {
		var (
			rec    trade.Record
			action string
			price  string
		)
		if err := rows.Scan(&rec.UserID, &action, &rec.Symbol, &rec.Quantity, &price, &rec.Time); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Seq = len(out)
		rec.Action = trade.Action(action)
		rec.Time = rec.Time.UTC()
		if rec.Price, err = trade.ParsePrice(price); err != nil {
			return nil, fmt.Errorf("trade price %q: %w", price, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert stores one execution for username.
func (s *SQL) Insert(ctx context.Context, username string, rec trade.Record) error {
	if err := trade.CheckUserID(username); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (username, action, symbol, quantity, price, trade_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username, string(rec.Action), rec.Symbol, rec.Quantity, rec.Price.String(), rec.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Import stores recs for username in a single transaction and returns the
// number of rows written.
func (s *SQL) Import(ctx context.Context, username string, recs trade.Records) (int, error) {
	if err := trade.CheckUserID(username); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (username, action, symbol, quantity, price, trade_time)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			username, string(rec.Action), rec.Symbol, rec.Quantity, rec.Price.String(), rec.Time.UTC(),
		); err != nil {
			return 0, fmt.Errorf("import row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(recs), nil
}
