package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared connection pool. InitDB must be called before any
// service touches it.
var Pool *pgxpool.Pool

func InitDB(ctx context.Context, databaseURL string) error {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		log.Printf("Failed to parse database URL: %v", err)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Printf("Failed to create connection pool: %v", err)
		return err
	}

	if err := pool.Ping(ctx); err != nil {
		log.Printf("Failed to ping database: %v", err)
		pool.Close()
		return err
	}

	Pool = pool
	log.Println("Connected to database")
	return nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
	}
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic.
func WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, Pool, fn)
}
