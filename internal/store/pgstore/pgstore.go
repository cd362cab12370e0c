// Package pgstore implements store.Store on PostgreSQL through pgx.
package pgstore

import (
	"context"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
)

type Store struct{ DB *pgxpool.Pool }

var _ store.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.DB.Ping(ctx), "ping")
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgxTx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err, "begin")
	}
	defer func() { _ = pgxTx.Rollback(ctx) }()

	if err := fn(&tx{tx: pgxTx}); err != nil {
		return err
	}
	return mapErr(pgxTx.Commit(ctx), "commit")
}

// mapErr translates driver failures into store and apperr kinds.
func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514", "23502":
			return apperr.Integrity(errors.Wrapf(err, "pgstore: %s (%s)", op, pgErr.ConstraintName))
		}
		// class 08: connection exception; 57P0x: admin shutdown
		if len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:3] == "57P") {
			return apperr.StoreUnavailable(errors.Wrapf(err, "pgstore: %s", op))
		}
		return errors.Wrapf(err, "pgstore: %s", op)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return apperr.StoreUnavailable(errors.Wrapf(err, "pgstore: %s", op))
	}
	return errors.Wrapf(err, "pgstore: %s", op)
}
