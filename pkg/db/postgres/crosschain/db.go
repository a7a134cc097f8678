// Package crosschain persists the settlement side: conversion requests,
// recorded mature transfers, and the sync checkpoint.
package crosschain

import (
	"context"
	"fmt"

	"github.com/p3root/StratisFullNode/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB represents the cross-chain schema of the database.
type DB struct {
	*postgres.Client
	Schema string
}

// New creates the cross-chain DB and ensures its tables exist.
// startHeight seeds the checkpoint when no row exists yet.
func New(ctx context.Context, client *postgres.Client, startHeight uint64) (*DB, error) {
	db := &DB{
		Client: client,
		Schema: "crosschain",
	}
	if err := db.InitializeDB(ctx, startHeight); err != nil {
		return nil, err
	}
	return db, nil
}

// SchemaTable returns a schema-qualified table name.
func (db *DB) SchemaTable(tableName string) string {
	return fmt.Sprintf("%s.%s", db.Schema, tableName)
}

// InitializeDB ensures the required schema and tables exist.
func (db *DB) InitializeDB(ctx context.Context, startHeight uint64) error {
	db.Logger.Info("Initializing cross-chain database", zap.String("schema", db.Schema))

	if err := db.CreateSchemaIfNotExists(ctx, db.Schema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", db.Schema, err)
	}

	if err := db.initConversionRequests(ctx); err != nil {
		return err
	}

	if err := db.initTransfers(ctx, startHeight); err != nil {
		return err
	}

	return nil
}
