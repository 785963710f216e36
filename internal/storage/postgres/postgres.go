// Package postgres implements the domain repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"io/fs"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-combos/db"
)

// migrationLockID keys the advisory lock that serialises migrations when
// several replicas start at once.
const migrationLockID = 0x6b617274 // "kart"

// NewPool connects to databaseURL and registers shopspring/decimal for
// NUMERIC columns. The pool is pinged before it is returned.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return pool, nil
}

// RunMigrations applies every embedded migration in name order inside one
// transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(db.Migrations, "migrations/*.sql")
	if err != nil {
		return errors.Wrap(err, "list migrations")
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return errors.Wrap(err, "lock migrations")
		}
		for _, name := range names {
			sql, err := fs.ReadFile(db.Migrations, name)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return errors.Wrapf(err, "apply %s", name)
			}
		}
		return nil
	})
}
