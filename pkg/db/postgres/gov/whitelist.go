package gov

import (
	"context"
	"fmt"

	"github.com/p3root/StratisFullNode/internal/whitelist"
)

// Whitelist is the postgres-backed whitelisted-hash repository.
type Whitelist struct {
	db *DB
}

// NewWhitelist returns the whitelist store over the governance DB.
func NewWhitelist(db *DB) *Whitelist {
	return &Whitelist{db: db}
}

// initWhitelist creates the whitelisted_hashes table.
func (db *DB) initWhitelist(ctx context.Context) error {
	table := db.SchemaTable("whitelisted_hashes")
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			hash BYTEA PRIMARY KEY,
			added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`, table)

	return db.Exec(ctx, query)
}

// Add inserts a hash; re-adding is a no-op.
func (w *Whitelist) Add(ctx context.Context, h whitelist.Hash) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (hash) VALUES ($1)
		ON CONFLICT (hash) DO NOTHING
	`, w.db.SchemaTable("whitelisted_hashes"))
	return w.db.Exec(ctx, query, h[:])
}

// Remove deletes a hash; removing an absent hash is a no-op.
func (w *Whitelist) Remove(ctx context.Context, h whitelist.Hash) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE hash = $1`, w.db.SchemaTable("whitelisted_hashes"))
	return w.db.Exec(ctx, query, h[:])
}

// Contains reports membership.
func (w *Whitelist) Contains(ctx context.Context, h whitelist.Hash) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE hash = $1)`, w.db.SchemaTable("whitelisted_hashes"))
	var ok bool
	if err := w.db.QueryRow(ctx, query, h[:]).Scan(&ok); err != nil {
		return false, fmt.Errorf("query whitelist: %w", err)
	}
	return ok, nil
}

// List returns all hashes in bytewise ascending order.
func (w *Whitelist) List(ctx context.Context) ([]whitelist.Hash, error) {
	query := fmt.Sprintf(`SELECT hash FROM %s ORDER BY hash`, w.db.SchemaTable("whitelisted_hashes"))
	rows, err := w.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query whitelist: %w", err)
	}
	defer rows.Close()

	var hashes []whitelist.Hash
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		if len(b) != whitelist.HashSize {
			return nil, fmt.Errorf("stored hash has %d bytes", len(b))
		}
		var h whitelist.Hash
		copy(h[:], b)
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hashes, nil
}
