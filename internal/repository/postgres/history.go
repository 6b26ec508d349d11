package postgres

import (
	"context"
	"fmt"

	"github.com/coinledger/backend/internal/models"
)

func (q *queries) InsertHistory(ctx context.Context, r *models.LedgerHistoryRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_histories (id, entry_id, action, changed_by, username, created_by, kind, method,
			game_name, player_name, player_tag, amount_base, amount, bonus_rate, bonus_amount, amount_final,
			total_paid, total_cashout, remaining_pay, reduction, extra_money, is_pending, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		r.ID, r.EntryID, string(r.Action), r.ChangedBy, r.Username, r.CreatedBy, string(r.Kind), string(r.Method),
		r.GameName, r.PlayerName, r.PlayerTag, r.AmountBase, r.Amount, r.BonusRate, r.BonusAmount, r.AmountFinal,
		r.TotalPaid, r.TotalCashout, r.RemainingPay, r.Reduction, r.ExtraMoney, r.IsPending, r.Snapshot, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (q *queries) ListHistory(ctx context.Context, entryID int64, limit int) ([]models.LedgerHistoryRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, entry_id, action, changed_by, username, created_by, kind, method,
			game_name, player_name, player_tag, amount_base, amount, bonus_rate, bonus_amount, amount_final,
			total_paid, total_cashout, remaining_pay, reduction, extra_money, is_pending, snapshot, created_at
		FROM ledger_histories
		WHERE entry_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, entryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []models.LedgerHistoryRecord
	for rows.Next() {
		var r models.LedgerHistoryRecord
		if err := rows.Scan(
			&r.ID, &r.EntryID, &r.Action, &r.ChangedBy, &r.Username, &r.CreatedBy, &r.Kind, &r.Method,
			&r.GameName, &r.PlayerName, &r.PlayerTag, &r.AmountBase, &r.Amount, &r.BonusRate, &r.BonusAmount, &r.AmountFinal,
			&r.TotalPaid, &r.TotalCashout, &r.RemainingPay, &r.Reduction, &r.ExtraMoney, &r.IsPending, &r.Snapshot, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
