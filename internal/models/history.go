package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// HistoryAction labels the mutation an audit row was written for
type HistoryAction string

const (
	ActionCreate       HistoryAction = "create"
	ActionUpdate       HistoryAction = "update"
	ActionDelete       HistoryAction = "delete"
	ActionUpdateMerge  HistoryAction = "update-merge"
	ActionClearPending HistoryAction = "clear-pending"
)

// LedgerHistoryRecord is an append-only audit row for one entry mutation
type LedgerHistoryRecord struct {
	ID           string        `json:"id" db:"id"`
	EntryID      int64         `json:"entryId" db:"entry_id"`
	Action       HistoryAction `json:"action" db:"action"`
	ChangedBy    string        `json:"changedBy" db:"changed_by"`
	Username     string        `json:"username" db:"username"`
	CreatedBy    string        `json:"createdBy" db:"created_by"`
	Kind         EntryKind     `json:"kind" db:"kind"`
	Method       PaymentMethod `json:"method,omitempty" db:"method"`
	GameName     string        `json:"gameName" db:"game_name"`
	PlayerName   string        `json:"playerName" db:"player_name"`
	PlayerTag    string        `json:"playerTag" db:"player_tag"`
	AmountBase   float64       `json:"amountBase" db:"amount_base"`
	Amount       float64       `json:"amount" db:"amount"`
	BonusRate    float64       `json:"bonusRate" db:"bonus_rate"`
	BonusAmount  float64       `json:"bonusAmount" db:"bonus_amount"`
	AmountFinal  float64       `json:"amountFinal" db:"amount_final"`
	TotalPaid    float64       `json:"totalPaid" db:"total_paid"`
	TotalCashout float64       `json:"totalCashout" db:"total_cashout"`
	RemainingPay float64       `json:"remainingPay" db:"remaining_pay"`
	Reduction    float64       `json:"reduction" db:"reduction"`
	ExtraMoney   float64       `json:"extraMoney" db:"extra_money"`
	IsPending    bool          `json:"isPending" db:"is_pending"`
	Snapshot     Snapshot      `json:"snapshot" db:"snapshot"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
}

// NewHistoryRecord copies the financial fields of entry into a new audit row
func NewHistoryRecord(entry *LedgerEntry, action HistoryAction, changedBy string, at time.Time) LedgerHistoryRecord {
	return LedgerHistoryRecord{
		EntryID:      entry.ID,
		Action:       action,
		ChangedBy:    changedBy,
		Username:     entry.Username,
		CreatedBy:    entry.CreatedBy,
		Kind:         entry.Kind,
		Method:       entry.Method,
		GameName:     entry.GameName,
		PlayerName:   entry.PlayerName,
		PlayerTag:    entry.PlayerTag,
		AmountBase:   entry.AmountBase,
		Amount:       entry.Amount,
		BonusRate:    entry.BonusRate,
		BonusAmount:  entry.BonusAmount,
		AmountFinal:  entry.AmountFinal,
		TotalPaid:    entry.TotalPaid,
		TotalCashout: entry.TotalCashout,
		RemainingPay: entry.RemainingPay,
		Reduction:    entry.Reduction,
		ExtraMoney:   entry.ExtraMoney,
		IsPending:    entry.IsPending,
		Snapshot:     Snapshot(*entry),
		CreatedAt:    at,
	}
}

// Snapshot is the full entry as it was at the time of the mutation, stored as JSONB
type Snapshot LedgerEntry

// Value implements driver.Valuer for Snapshot
func (s Snapshot) Value() (driver.Value, error) {
	return json.Marshal(LedgerEntry(s))
}

// Scan implements sql.Scanner for Snapshot
func (s *Snapshot) Scan(value any) error {
	if value == nil {
		*s = Snapshot{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	var entry LedgerEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return err
	}
	*s = Snapshot(entry)
	return nil
}
