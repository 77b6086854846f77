package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/credsync/database"
)

// Connection is the shared pgx pool used by all repositories.
type Connection struct {
	*pgxpool.Pool
}

// Option adjusts the pool configuration before it is opened.
type Option func(*pgxpool.Config)

// WithMaxConns caps the pool size. Non-positive values keep the pgx default.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// NewConnection applies pending migrations and opens a pool for dsn.
func NewConnection(ctx context.Context, dsn string, opts ...Option) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	for _, opt := range opts {
		opt(conf)
	}

	if err := database.Migrate(ctx, dsn); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}
	return &Connection{Pool: pool}, nil
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Connection) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if s.Pool == nil {
		return errors.New("connection pool is nil")
	}
	return pgx.BeginFunc(ctx, s.Pool, fn)
}

// InSnapshot runs fn in a read-only repeatable read transaction.
func (s *Connection) InSnapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if s.Pool == nil {
		return errors.New("connection pool is nil")
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.Pool, opts, fn)
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return errors.New("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}
