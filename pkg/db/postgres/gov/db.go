// Package gov persists governance state: polls with their votes, and the
// whitelisted-hash set.
package gov

import (
	"context"
	"fmt"

	"github.com/p3root/StratisFullNode/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB represents the governance schema of the database.
type DB struct {
	*postgres.Client
	Schema string
}

// New creates the governance DB and ensures its tables exist.
func New(ctx context.Context, client *postgres.Client) (*DB, error) {
	db := &DB{
		Client: client,
		Schema: "gov",
	}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// SchemaTable returns a schema-qualified table name.
func (db *DB) SchemaTable(tableName string) string {
	return fmt.Sprintf("%s.%s", db.Schema, tableName)
}

// InitializeDB ensures the required schema and tables exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing governance database", zap.String("schema", db.Schema))

	if err := db.CreateSchemaIfNotExists(ctx, db.Schema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", db.Schema, err)
	}

	if err := db.initPolls(ctx); err != nil {
		return err
	}

	if err := db.initWhitelist(ctx); err != nil {
		return err
	}

	return nil
}
