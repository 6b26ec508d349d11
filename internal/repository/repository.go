// Package repository defines the record-store primitives the ledger depends on.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"

	"github.com/coinledger/backend/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when inserting a record whose unique key is taken
	ErrAlreadyExists = errors.New("record already exists")
)

// Queries are the find/insert/update/delete primitives over entries and games.
// Inside RunInTx they share one transaction.
type Queries interface {
	GetEntry(ctx context.Context, id int64) (*models.LedgerEntry, error)
	// LatestDeposit returns the most recently created deposit for the pair, or ErrNotFound
	LatestDeposit(ctx context.Context, username, playerTag string) (*models.LedgerEntry, error)
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	UpdateEntry(ctx context.Context, entry *models.LedgerEntry) error
	DeleteEntry(ctx context.Context, id int64) error
	// ListEntries returns matching entries oldest first
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error)

	// ApplyGameDelta atomically adds delta to the game's total coins.
	// It reports false when no game has that name.
	ApplyGameDelta(ctx context.Context, gameName string, delta float64) (bool, error)
	GetGame(ctx context.Context, name string) (*models.GameBalance, error)
	ListGames(ctx context.Context) ([]models.GameBalance, error)
	InsertGame(ctx context.Context, game *models.GameBalance) error
}

// LedgerStore is the durable store for entries and game balances
type LedgerStore interface {
	Queries
	// RunInTx runs fn atomically; any error returned by fn discards its writes
	RunInTx(ctx context.Context, fn func(q Queries) error) error
}

// HistoryStore persists audit rows. It is written outside ledger transactions.
type HistoryStore interface {
	InsertHistory(ctx context.Context, record *models.LedgerHistoryRecord) error
	// ListHistory returns the entry's audit rows newest first
	ListHistory(ctx context.Context, entryID int64, limit int) ([]models.LedgerHistoryRecord, error)
}

// UserStore looks up operator accounts
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	InsertUser(ctx context.Context, user *models.User) error
}
