package crosschain

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/p3root/StratisFullNode/internal/peg"
)

// Transfers is the postgres-backed cross-chain transfer store. It records
// the standard mature deposits per counter-chain block and owns the sync
// checkpoint; both move in one transaction so a block is either fully
// consumed or not at all.
type Transfers struct {
	db *DB
}

// NewTransfers returns the transfer store.
func NewTransfers(db *DB) *Transfers {
	return &Transfers{db: db}
}

// initTransfers creates the transfers table and the single-row checkpoint.
func (db *DB) initTransfers(ctx context.Context, startHeight uint64) error {
	transfersTable := db.SchemaTable("transfers")
	checkpointTable := db.SchemaTable("sync_checkpoint")
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			deposit_id BYTEA PRIMARY KEY,
			amount BIGINT NOT NULL,
			target_address TEXT NOT NULL,
			target_chain TEXT NOT NULL,
			retrieval_type SMALLINT NOT NULL,
			block_height BIGINT NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transfers_block_height ON %s(block_height);

		CREATE TABLE IF NOT EXISTS %s (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			next_mature_deposit_height BIGINT NOT NULL,
			tip_saved_at TIMESTAMP WITH TIME ZONE
		);
	`, transfersTable, transfersTable, checkpointTable)

	if err := db.Exec(ctx, query); err != nil {
		return err
	}

	seed := fmt.Sprintf(`
		INSERT INTO %s (id, next_mature_deposit_height)
		VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, checkpointTable)
	return db.Exec(ctx, seed, startHeight)
}

// RecordLatestMatureDeposits inserts the block's deposits and advances the
// checkpoint past the block. The checkpoint never moves backward.
func (s *Transfers) RecordLatestMatureDeposits(ctx context.Context, blockHeight uint64, deposits []peg.Deposit) (bool, error) {
	transfersTable := s.db.SchemaTable("transfers")
	checkpointTable := s.db.SchemaTable("sync_checkpoint")

	recorded := false
	err := s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		insert := fmt.Sprintf(`
			INSERT INTO %s (deposit_id, amount, target_address, target_chain, retrieval_type, block_height)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (deposit_id) DO NOTHING
		`, transfersTable)
		for _, d := range deposits {
			tag, err := tx.Exec(ctx, insert, d.ID[:], d.Amount, d.TargetAddress, d.TargetChain, int16(d.RetrievalType), blockHeight)
			if err != nil {
				return fmt.Errorf("insert transfer %s: %w", d.ID.Hex(), err)
			}
			if tag.RowsAffected() > 0 {
				recorded = true
			}
		}

		advance := fmt.Sprintf(`
			UPDATE %s SET next_mature_deposit_height = GREATEST(next_mature_deposit_height, $1)
			WHERE id = 1
		`, checkpointTable)
		if _, err := tx.Exec(ctx, advance, blockHeight+1); err != nil {
			return fmt.Errorf("advance checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

// SaveCurrentTip marks the store's tip as flushed.
func (s *Transfers) SaveCurrentTip(ctx context.Context) error {
	query := fmt.Sprintf(`UPDATE %s SET tip_saved_at = NOW() WHERE id = 1`, s.db.SchemaTable("sync_checkpoint"))
	return s.db.Exec(ctx, query)
}

// NextMatureDepositHeight returns where the next fetch resumes.
func (s *Transfers) NextMatureDepositHeight(ctx context.Context) (uint64, error) {
	query := fmt.Sprintf(`SELECT next_mature_deposit_height FROM %s WHERE id = 1`, s.db.SchemaTable("sync_checkpoint"))
	var height uint64
	if err := s.db.QueryRow(ctx, query).Scan(&height); err != nil {
		return 0, fmt.Errorf("query checkpoint: %w", err)
	}
	return height, nil
}
