// Package users is the account directory behind /api/users.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrInvalid  = errors.New("invalid user")
)

type User struct {
	ID       int64  `json:"user_id"`
	Fullname string `json:"fullname" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

// Patch carries the fields of an update; nil fields are left unchanged.
type Patch struct {
	Fullname *string `json:"fullname,omitempty"`
	Email    *string `json:"email,omitempty" binding:"omitempty,email"`
}

func (p Patch) Apply(u User) User {
	if p.Fullname != nil {
		u.Fullname = *p.Fullname
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	return u
}

// Validate checks the fields a stored user must have.
func (u User) Validate() error {
	if strings.TrimSpace(u.Fullname) == "" {
		return fmt.Errorf("%w: fullname is required", ErrInvalid)
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email %q is not an address", ErrInvalid, u.Email)
	}
	return nil
}

// StoreError reports a failed store operation along with the HTTP status it
// maps to.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("users %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalid):
		status = http.StatusBadRequest
	}
	return &StoreError{Op: op, Status: status, Err: err}
}

// Store keeps users in the users table created by internal/db.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, fullname, email FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Fullname, &u.Email); err != nil {
			return nil, storeErr("list", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return User{}, storeErr("get", err)
	}
	return u, nil
}

func (s *Store) get(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fullname, email FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Fullname, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return u, err
}

// Create inserts u and returns it with its assigned ID. Any ID on u is ignored.
func (s *Store) Create(ctx context.Context, u User) (User, error) {
	if err := u.Validate(); err != nil {
		return User{}, storeErr("create", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (fullname, email) VALUES (?, ?)`, u.Fullname, u.Email)
	if err != nil {
		return User{}, storeErr("create", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return User{}, storeErr("create", err)
	}
	return u, nil
}

// Update applies p to the stored user and returns the result.
func (s *Store) Update(ctx context.Context, id int64, p Patch) (User, error) {
	cur, err := s.get(ctx, id)
	if err != nil {
		return User{}, storeErr("update", err)
	}

	next := p.Apply(cur)
	if err := next.Validate(); err != nil {
		return User{}, storeErr("update", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET fullname = ?, email = ? WHERE id = ?`, next.Fullname, next.Email, id,
	); err != nil {
		return User{}, storeErr("update", err)
	}
	return next, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete", err)
	}
	if n == 0 {
		return storeErr("delete", fmt.Errorf("%w: id %d", ErrNotFound, id))
	}
	return nil
}
