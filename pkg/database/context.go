package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped connection.
	ScopeKey contextKey = "scope"
	// TxKey is the context key for storing an open transaction.
	TxKey contextKey = "tx"
)

// ErrNoScope is returned when a repository is used without a connection in context.
var ErrNoScope = errors.New("no database scope in context")

// Querier is the subset of pgx shared by *pgxpool.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetScope retrieves the request-scoped connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok
}

// SetScope stores the request-scoped connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// QuerierFrom returns the open transaction if one is in context, otherwise
// the request connection.
func QuerierFrom(ctx context.Context) (Querier, error) {
	if tx, ok := ctx.Value(TxKey).(pgx.Tx); ok {
		return tx, nil
	}
	scope, ok := GetScope(ctx)
	if !ok || scope.Conn == nil {
		return nil, ErrNoScope
	}
	return scope.Conn, nil
}

// WithTx runs fn inside a single transaction on the request connection.
// The transaction commits only if fn returns nil; any error rolls back every
// statement fn issued. Nested calls reuse the outer transaction.
func WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(TxKey).(pgx.Tx); ok {
		return fn(ctx)
	}

	scope, ok := GetScope(ctx)
	if !ok || scope.Conn == nil {
		return ErrNoScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(context.WithValue(ctx, TxKey, tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ScopeProvider creates request-scoped contexts outside of HTTP handlers
// (startup seeding, tests).
type ScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB) *ScopeProvider {
	return &ScopeProvider{db: db}
}

// WithScope returns a context carrying a freshly acquired connection.
// The cleanup function must be called when the scope is no longer needed.
func (p *ScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), func() { scope.Close() }, nil
}
