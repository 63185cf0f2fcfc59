package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Database owns the pgx connection pool shared by all stores.
type Database struct {
	dsn  string
	pool *pgxpool.Pool
}

func NewDatabase(dsn string) *Database {
	return &Database{dsn: dsn}
}

func (db *Database) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, db.dsn)
	if err != nil {
		return fmt.Errorf("unable to connect: %w", err)
	}
	db.pool = pool
	return nil
}

func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

// InitSchema applies the embedded schema. Statements are idempotent, so this
// is safe on every startup.
func (db *Database) InitSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ResetDatabase drops and recreates the application database, then applies
// the schema. Dev convenience until a proper migration story exists.
func ResetDatabase(ctx context.Context, managementDsn, dsn, dbName string) error {
	managementPool, err := pgxpool.New(ctx, managementDsn)
	if err != nil {
		return fmt.Errorf("unable to connect to management database: %w", err)
	}
	defer managementPool.Close()

	if _, err := managementPool.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	if _, err := managementPool.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	db := NewDatabase(dsn)
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer db.Close()
	return db.InitSchema(ctx)
}

// rollbackOrCommit finishes a transaction based on the caller's error state.
// Meant for use with defer and a named error return.
func rollbackOrCommit(ctx context.Context, tx pgx.Tx, err *error) {
	if *err != nil {
		_ = tx.Rollback(ctx)
		return
	}
	if cmErr := tx.Commit(ctx); cmErr != nil {
		*err = fmt.Errorf("commit failed: %w", cmErr)
	}
}
