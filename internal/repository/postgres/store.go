// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/coinledger/backend/internal/database"
	"github.com/coinledger/backend/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements repository.LedgerStore, repository.HistoryStore and repository.UserStore
type Store struct {
	*queries
	db *sql.DB
}

type queries struct {
	db dbtx
	// inTx enables row locks on reads that precede a write
	inTx bool
}

var (
	_ repository.LedgerStore  = (*Store)(nil)
	_ repository.HistoryStore = (*Store)(nil)
	_ repository.UserStore    = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{
		queries: &queries{db: db},
		db:      db,
	}
}

// RunInTx runs fn with queries bound to a single transaction
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&queries{db: tx, inTx: true})
	})
}

func (q *queries) lockClause() string {
	if q.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
