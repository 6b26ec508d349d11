package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

const entryColumns = `id, username, created_by, kind, method, player_name, player_tag, game_name,
	amount_base, amount, bonus_rate, bonus_amount, amount_final, note, entry_date,
	total_paid, total_cashout, remaining_pay, is_pending, extra_money, reduction,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(
		&e.ID, &e.Username, &e.CreatedBy, &e.Kind, &e.Method, &e.PlayerName, &e.PlayerTag, &e.GameName,
		&e.AmountBase, &e.Amount, &e.BonusRate, &e.BonusAmount, &e.AmountFinal, &e.Note, &e.Date,
		&e.TotalPaid, &e.TotalCashout, &e.RemainingPay, &e.IsPending, &e.ExtraMoney, &e.Reduction,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *queries) GetEntry(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE id = $1`+q.lockClause(), id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return entry, nil
}

func (q *queries) LatestDeposit(ctx context.Context, username, playerTag string) (*models.LedgerEntry, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE username = $1 AND player_tag = $2 AND kind = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`+q.lockClause(), username, playerTag, string(models.KindDeposit))

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest deposit: %w", err)
	}
	return entry, nil
}

func (q *queries) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (username, created_by, kind, method, player_name, player_tag, game_name,
			amount_base, amount, bonus_rate, bonus_amount, amount_final, note, entry_date,
			total_paid, total_cashout, remaining_pay, is_pending, extra_money, reduction,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id`,
		e.Username, e.CreatedBy, string(e.Kind), string(e.Method), e.PlayerName, e.PlayerTag, e.GameName,
		e.AmountBase, e.Amount, e.BonusRate, e.BonusAmount, e.AmountFinal, e.Note, e.Date,
		e.TotalPaid, e.TotalCashout, e.RemainingPay, e.IsPending, e.ExtraMoney, e.Reduction,
		e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (q *queries) UpdateEntry(ctx context.Context, e *models.LedgerEntry) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET username = $2, created_by = $3, kind = $4, method = $5, player_name = $6, player_tag = $7,
			game_name = $8, amount_base = $9, amount = $10, bonus_rate = $11, bonus_amount = $12,
			amount_final = $13, note = $14, entry_date = $15, total_paid = $16, total_cashout = $17,
			remaining_pay = $18, is_pending = $19, extra_money = $20, reduction = $21, updated_at = $22
		WHERE id = $1`,
		e.ID, e.Username, e.CreatedBy, string(e.Kind), string(e.Method), e.PlayerName, e.PlayerTag,
		e.GameName, e.AmountBase, e.Amount, e.BonusRate, e.BonusAmount,
		e.AmountFinal, e.Note, e.Date, e.TotalPaid, e.TotalCashout,
		e.RemainingPay, e.IsPending, e.ExtraMoney, e.Reduction, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update entry %d: %w", e.ID, err)
	}
	return affectedOrNotFound(res)
}

func (q *queries) DeleteEntry(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return affectedOrNotFound(res)
}

func (q *queries) ListEntries(ctx context.Context, f models.EntryFilter) ([]models.LedgerEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Username != "" {
		add("username = $%d", f.Username)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		add("kind = ANY($%d)", pq.Array(kinds))
	}
	if f.GameName != "" {
		add("game_name = $%d", f.GameName)
	}
	if f.PlayerTag != nil {
		add("player_tag = $%d", *f.PlayerTag)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at < $%d", *f.CreatedTo)
	}
	if f.DatePrefix != "" {
		add("entry_date LIKE $%d", f.DatePrefix+"%")
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}
