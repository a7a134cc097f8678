package crosschain

import (
	"context"
	"fmt"

	"github.com/p3root/StratisFullNode/internal/peg"
)

// ConversionRequests is the postgres-backed conversion request store.
type ConversionRequests struct {
	db *DB
}

// NewConversionRequests returns the conversion request store.
func NewConversionRequests(db *DB) *ConversionRequests {
	return &ConversionRequests{db: db}
}

// initConversionRequests creates the conversion_requests table.
func (db *DB) initConversionRequests(ctx context.Context) error {
	table := db.SchemaTable("conversion_requests")
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			request_id BYTEA PRIMARY KEY,
			request_type SMALLINT NOT NULL,
			status SMALLINT NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			amount BIGINT NOT NULL,
			block_height BIGINT NOT NULL,
			destination_address TEXT NOT NULL,
			destination_chain TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_conversion_requests_status ON %s(status);
	`, table, table)

	return db.Exec(ctx, query)
}

// Exists reports whether a request with the deposit id was already created.
func (s *ConversionRequests) Exists(ctx context.Context, id peg.DepositID) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE request_id = $1)`, s.db.SchemaTable("conversion_requests"))
	var ok bool
	if err := s.db.QueryRow(ctx, query, id[:]).Scan(&ok); err != nil {
		return false, fmt.Errorf("query conversion request: %w", err)
	}
	return ok, nil
}

// Save creates the request. Re-delivery of the same id keeps the original
// row untouched; later status updates belong to the external processor.
func (s *ConversionRequests) Save(ctx context.Context, req *peg.ConversionRequest) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (request_id, request_type, status, processed, amount, block_height, destination_address, destination_chain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
	`, s.db.SchemaTable("conversion_requests"))
	return s.db.Exec(ctx, query,
		req.RequestID[:],
		int16(req.RequestType),
		int16(req.Status),
		req.Processed,
		req.Amount,
		req.BlockHeight,
		req.DestinationAddress,
		req.DestinationChain,
	)
}

// List returns all requests in creation order.
func (s *ConversionRequests) List(ctx context.Context) ([]*peg.ConversionRequest, error) {
	query := fmt.Sprintf(`
		SELECT request_id, request_type, status, processed, amount, block_height, destination_address, destination_chain
		FROM %s
		ORDER BY created_at, request_id
	`, s.db.SchemaTable("conversion_requests"))

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query conversion requests: %w", err)
	}
	defer rows.Close()

	var out []*peg.ConversionRequest
	for rows.Next() {
		var (
			id          []byte
			requestType int16
			status      int16
			req         peg.ConversionRequest
		)
		if err := rows.Scan(&id, &requestType, &status, &req.Processed, &req.Amount, &req.BlockHeight, &req.DestinationAddress, &req.DestinationChain); err != nil {
			return nil, fmt.Errorf("scan conversion request: %w", err)
		}
		if len(id) != len(req.RequestID) {
			return nil, fmt.Errorf("stored request id has %d bytes", len(id))
		}
		copy(req.RequestID[:], id)
		req.RequestType = peg.RequestType(requestType)
		req.Status = peg.RequestStatus(status)
		out = append(out, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
