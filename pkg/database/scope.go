package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope wraps the pooled connection that serves one logical request.
// Every statement issued while handling the request runs on Conn, so a
// transaction opened with WithTx sees and is seen by the same session.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection back to the pool.
// This MUST be called once the request is finished.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// Acquire takes a connection from the pool for the lifetime of one request.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn}, nil
}
