package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

var entryColumnNames = []string{
	"id", "username", "created_by", "kind", "method", "player_name", "player_tag", "game_name",
	"amount_base", "amount", "bonus_rate", "bonus_amount", "amount_final", "note", "entry_date",
	"total_paid", "total_cashout", "remaining_pay", "is_pending", "extra_money", "reduction",
	"created_at", "updated_at",
}

func entryRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(entryColumnNames).AddRow(
		7, "alice", "alice", "deposit", "cashapp", "Jo", "p1", "X",
		50.0, 50.0, 0.0, 0.0, 50.0, "", "2024-05-17",
		0.0, 80.0, 0.0, true, 0.0, 30.0,
		now, now,
	)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStore_GetEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 17, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(entryRows(now))

		entry, err := store.GetEntry(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, models.KindDeposit, entry.Kind)
		assert.Equal(t, models.MethodCashApp, entry.Method)
		assert.Equal(t, 30.0, entry.Reduction)
		assert.True(t, entry.IsPending)
		assert.Equal(t, "2024-05-17", entry.Date)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE id = \\$1").
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows(entryColumnNames))

		_, err := store.GetEntry(ctx, 8)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_RunInTx(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 17, 10, 0, 0, 0, time.UTC)

	t.Run("commits and locks rows", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(entryRows(now))
		mock.ExpectExec("UPDATE games SET total_coins = total_coins \\+ \\$1").
			WithArgs(50.0, "X").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM ledger_entries WHERE id = \\$1").
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.RunInTx(ctx, func(q repository.Queries) error {
			entry, err := q.GetEntry(ctx, 7)
			if err != nil {
				return err
			}
			if _, err := q.ApplyGameDelta(ctx, entry.GameName, entry.AmountFinal); err != nil {
				return err
			}
			return q.DeleteEntry(ctx, entry.ID)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns the callback error", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE games").
			WithArgs(-10.0, "X").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := store.RunInTx(ctx, func(q repository.Queries) error {
			if _, err := q.ApplyGameDelta(ctx, "X", -10); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_ApplyGameDelta(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE games").
		WithArgs(25.0, "Known").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE games").
		WithArgs(25.0, "Missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := store.ApplyGameDelta(ctx, "Known", 25)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.ApplyGameDelta(ctx, "Missing", 25)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 17, 10, 0, 0, 0, time.UTC)

	t.Run("builds the filter", func(t *testing.T) {
		store, mock := newMockStore(t)
		tag := "p1"

		mock.ExpectQuery("FROM ledger_entries WHERE username = \\$1 AND kind = ANY\\(\\$2\\) AND player_tag = \\$3 AND entry_date LIKE \\$4 ORDER BY created_at ASC, id ASC LIMIT \\$5").
			WithArgs("alice", sqlmock.AnyArg(), "p1", "2024-05%", 10).
			WillReturnRows(entryRows(now))

		entries, err := store.ListEntries(ctx, models.EntryFilter{
			Username:   "alice",
			Kinds:      []models.EntryKind{models.KindDeposit, models.KindRedeem},
			PlayerTag:  &tag,
			DatePrefix: "2024-05",
			Limit:      10,
		})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(7), entries[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("time window", func(t *testing.T) {
		store, mock := newMockStore(t)
		from, to := now, now.Add(24*time.Hour)

		mock.ExpectQuery("WHERE created_at >= \\$1 AND created_at < \\$2 ORDER BY").
			WithArgs(from, to).
			WillReturnRows(sqlmock.NewRows(entryColumnNames))

		entries, err := store.ListEntries(ctx, models.EntryFilter{CreatedFrom: &from, CreatedTo: &to})
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_UpdateEntryNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ledger_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateEntry(context.Background(), &models.LedgerEntry{ID: 99, Kind: models.KindFreeplay})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertEntry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO ledger_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	entry := &models.LedgerEntry{Username: "alice", Kind: models.KindFreeplay, GameName: "X"}
	require.NoError(t, store.InsertEntry(context.Background(), entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertGameConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO games").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.InsertGame(context.Background(), &models.GameBalance{Name: "X"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 17, 10, 0, 0, 0, time.UTC)

	t.Run("lookup is case insensitive", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, username, password_hash, role, created_at FROM users WHERE username = \\$1").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}).
				AddRow(1, "alice", "salt$hash", "admin", now))

		user, err := store.GetUserByUsername(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}))

		_, err := store.GetUserByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate insert", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("root", "salt$hash", "admin").
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.InsertUser(ctx, &models.User{Username: "Root", PasswordHash: "salt$hash", Role: models.RoleAdmin})
		assert.ErrorIs(t, err, repository.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	now := time.Date(2024, time.May, 17, 10, 0, 0, 0, time.UTC)

	entry := &models.LedgerEntry{ID: 7, Username: "alice", Kind: models.KindRedeem, GameName: "X", AmountFinal: 20}
	record := models.NewHistoryRecord(entry, models.ActionCreate, "alice", now)
	record.ID = "0b6e3c1e-6d8e-4b3c-9d4e-2f1a7c9b8e01"

	mock.ExpectExec("INSERT INTO ledger_histories").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.InsertHistory(ctx, &record))

	snapshot, err := record.Snapshot.Value()
	require.NoError(t, err)

	mock.ExpectQuery("FROM ledger_histories WHERE entry_id = \\$1 ORDER BY created_at DESC, seq DESC LIMIT \\$2").
		WithArgs(int64(7), 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "entry_id", "action", "changed_by", "username", "created_by", "kind", "method",
			"game_name", "player_name", "player_tag", "amount_base", "amount", "bonus_rate", "bonus_amount", "amount_final",
			"total_paid", "total_cashout", "remaining_pay", "reduction", "extra_money", "is_pending", "snapshot", "created_at",
		}).AddRow(
			record.ID, 7, "create", "alice", "alice", "", "redeem", "",
			"X", "", "", 0.0, 0.0, 0.0, 0.0, 20.0,
			0.0, 0.0, 0.0, 0.0, 0.0, false, snapshot, now,
		))

	records, err := store.ListHistory(ctx, 7, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionCreate, records[0].Action)
	assert.Equal(t, 20.0, records[0].Snapshot.AmountFinal)

	assert.NoError(t, mock.ExpectationsWereMet())
}
