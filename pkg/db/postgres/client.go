// Package postgres wraps a pgx connection pool with the small surface the
// schema-scoped stores need.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Client is a PostgreSQL connection pool plus its logger.
type Client struct {
	Pool   *pgxpool.Pool
	Logger *zap.Logger
}

// New creates a connection pool and verifies connectivity.
func New(ctx context.Context, logger *zap.Logger, url string) (*Client, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Connection pool settings
	config.MinConns = 2
	config.MaxConns = 20

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Client{Pool: pool, Logger: logger}, nil
}

// Close terminates the underlying pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// Exec runs a statement without returning rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.Pool.Exec(ctx, sql, args...)
	return err
}

// Query runs a row-returning query.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.Pool.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.Pool.QueryRow(ctx, sql, args...)
}

// BeginFunc runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (c *Client) BeginFunc(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateSchemaIfNotExists creates a schema.
func (c *Client) CreateSchemaIfNotExists(ctx context.Context, name string) error {
	return c.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{name}.Sanitize()))
}
