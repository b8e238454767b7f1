// Package pgx implements store.GraphStore on PostgreSQL, with pgvector for
// domain embedding similarity.
package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
	BeginTx(ctx context.Context, txOptions pgxv5.TxOptions) (pgxv5.Tx, error)
}

// GraphDBStore implements the GraphStore interface against PostgreSQL.
// Per-key merge serialization comes from the unique index on
// (entity_type, canonical_name); document deltas run in a transaction.
type GraphDBStore struct {
	conn pgxIConn
}

// NewGraphDBStoreWithConnection creates a GraphDBStore on an existing
// connection or pool. The schema must already be migrated.
func NewGraphDBStoreWithConnection(ctx context.Context, conn pgxIConn) (*GraphDBStore, error) {
	return &GraphDBStore{conn: conn}, nil
}

// NewPoolConfig parses a pgxpool config that registers pgvector types on
// every new connection. AfterConnect must be set before the pool exists;
// pgxpool.Pool.Config() returns a copy, so setting it afterwards is a no-op.
func NewPoolConfig(connString string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return cfg, nil
}
