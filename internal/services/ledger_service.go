package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/coinledger/backend/internal/audit"
	"github.com/coinledger/backend/internal/config"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

// LedgerService records, edits and removes ledger entries and keeps the
// per-game coin balances in step with them.
type LedgerService struct {
	store     repository.LedgerStore
	balances  *GameBalanceService
	history   *HistoryService
	cache     *SummaryCache
	audit     *audit.AuditLogger
	validator *ValidationHelper
	listLimit int
	loc       *time.Location
	now       func() time.Time
}

// CreateEntryRequest is the input of CreateEntry.
// CreatedBy is filled from the authenticated principal, never from the body.
type CreateEntryRequest struct {
	Username     string               `json:"username"`
	CreatedBy    string               `json:"-"`
	Kind         models.EntryKind     `json:"kind"`
	Method       models.PaymentMethod `json:"method"`
	PlayerName   string               `json:"playerName"`
	PlayerTag    string               `json:"playerTag"`
	GameName     string               `json:"gameName"`
	AmountBase   float64              `json:"amountBase"`
	Amount       *float64             `json:"amount"`
	BonusRate    float64              `json:"bonusRate"`
	BonusAmount  float64              `json:"bonusAmount"`
	AmountFinal  float64              `json:"amountFinal"`
	Note         string               `json:"note"`
	Date         string               `json:"date"`
	TotalPaid    float64              `json:"totalPaid"`
	TotalCashout float64              `json:"totalCashout"`
	RemainingPay float64              `json:"remainingPay"`
	IsPending    bool                 `json:"isPending"`
	ExtraMoney   float64              `json:"extraMoney"`
	Reduction    float64              `json:"reduction"`
}

// EntryPatch carries the fields UpdateEntry should change; nil means unchanged
type EntryPatch struct {
	Kind         *models.EntryKind     `json:"kind"`
	Method       *models.PaymentMethod `json:"method"`
	PlayerName   *string               `json:"playerName"`
	PlayerTag    *string               `json:"playerTag"`
	GameName     *string               `json:"gameName"`
	AmountBase   *float64              `json:"amountBase"`
	Amount       *float64              `json:"amount"`
	BonusRate    *float64              `json:"bonusRate"`
	BonusAmount  *float64              `json:"bonusAmount"`
	AmountFinal  *float64              `json:"amountFinal"`
	Note         *string               `json:"note"`
	Date         *string               `json:"date"`
	TotalPaid    *float64              `json:"totalPaid"`
	TotalCashout *float64              `json:"totalCashout"`
	RemainingPay *float64              `json:"remainingPay"`
	IsPending    *bool                 `json:"isPending"`
	ExtraMoney   *float64              `json:"extraMoney"`
	Reduction    *float64              `json:"reduction"`
}

func NewLedgerService(
	store repository.LedgerStore,
	balances *GameBalanceService,
	history *HistoryService,
	cache *SummaryCache,
	auditLogger *audit.AuditLogger,
	cfg *config.LedgerConfig,
) *LedgerService {
	return &LedgerService{
		store:     store,
		balances:  balances,
		history:   history,
		cache:     cache,
		audit:     auditLogger,
		validator: NewValidationHelper(),
		listLimit: cfg.ListLimit,
		loc:       cfg.Location,
		now:       time.Now,
	}
}

// CreateEntry validates and records a transaction. A deposit that carries a
// reduction for a known player tag is folded into that player's latest deposit
// instead of creating a new row.
func (s *LedgerService) CreateEntry(ctx context.Context, req CreateEntryRequest) (*models.LedgerEntry, error) {
	entry := req.toEntry(s.now().UTC(), s.loc)
	if err := s.validateEntry(entry); err != nil {
		return nil, err
	}

	var (
		result *models.LedgerEntry
		action models.HistoryAction
		delta  float64
	)
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		if entry.Kind == models.KindDeposit && entry.PlayerTag != "" && req.Reduction > 0 {
			target, err := q.LatestDeposit(ctx, entry.Username, entry.PlayerTag)
			switch {
			case err == nil:
				oldEffect := CoinEffect(target.Kind, target.AmountFinal)
				mergeDeposit(target, entry)
				if err := q.UpdateEntry(ctx, target); err != nil {
					return err
				}
				result, action = target, models.ActionUpdateMerge
				delta = subMoney(CoinEffect(target.Kind, target.AmountFinal), oldEffect)
				return s.balances.ApplyDelta(ctx, q, target.GameName, delta)
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}

		if err := q.InsertEntry(ctx, entry); err != nil {
			return err
		}
		result, action = entry, models.ActionCreate
		delta = CoinEffect(entry.Kind, entry.AmountFinal)
		return s.balances.ApplyDelta(ctx, q, entry.GameName, delta)
	})
	if err != nil {
		log.Printf("[LEDGER] Create %s entry for %s/%s failed: %v", entry.Kind, entry.Username, entry.GameName, err)
		s.audit.LogError("create entry", 0, entry.Username, err)
		return nil, classify("create entry", err)
	}

	log.Printf("[LEDGER] Entry %d %s (%s %.2f on %s) by %s", result.ID, action, result.Kind, result.AmountFinal, result.GameName, req.CreatedBy)
	s.afterCommit(ctx, result, action, req.CreatedBy, delta)
	return result, nil
}

// UpdateEntry applies patch to an entry and moves its coin effect between the
// old and new state, including across games when gameName changes.
func (s *LedgerService) UpdateEntry(ctx context.Context, id int64, patch EntryPatch, changedBy string) (*models.LedgerEntry, error) {
	if !patch.hasChanges() {
		return nil, newValidationError("body", "no fields to update")
	}

	var (
		updated  *models.LedgerEntry
		netDelta float64
	)
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		entry, err := q.GetEntry(ctx, id)
		if err != nil {
			return entryNotFound(id, err)
		}
		oldKind, oldAmount, oldGame := entry.Kind, entry.AmountFinal, entry.GameName

		patch.applyTo(entry)
		normalizeEntry(entry)
		if err := s.validateEntry(entry); err != nil {
			return err
		}
		entry.UpdatedAt = s.now().UTC()

		if err := q.UpdateEntry(ctx, entry); err != nil {
			return entryNotFound(id, err)
		}

		oldEffect := CoinEffect(oldKind, oldAmount)
		newEffect := CoinEffect(entry.Kind, entry.AmountFinal)
		if err := s.balances.ApplyDelta(ctx, q, oldGame, -oldEffect); err != nil {
			return err
		}
		if err := s.balances.ApplyDelta(ctx, q, entry.GameName, newEffect); err != nil {
			return err
		}

		updated = entry
		netDelta = subMoney(newEffect, oldEffect)
		return nil
	})
	if err != nil {
		log.Printf("[LEDGER] Update entry %d failed: %v", id, err)
		s.audit.LogError("update entry", id, changedBy, err)
		return nil, classify("update entry", err)
	}

	log.Printf("[LEDGER] Entry %d updated by %s", id, changedBy)
	s.afterCommit(ctx, updated, models.ActionUpdate, changedBy, netDelta)
	return updated, nil
}

// DeleteEntry reverses an entry's coin effect and removes it
func (s *LedgerService) DeleteEntry(ctx context.Context, id int64, deletedBy string) error {
	var (
		removed *models.LedgerEntry
		delta   float64
	)
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		entry, err := q.GetEntry(ctx, id)
		if err != nil {
			return entryNotFound(id, err)
		}

		delta = -CoinEffect(entry.Kind, entry.AmountFinal)
		if err := s.balances.ApplyDelta(ctx, q, entry.GameName, delta); err != nil {
			return err
		}
		if err := q.DeleteEntry(ctx, id); err != nil {
			return entryNotFound(id, err)
		}

		removed = entry
		return nil
	})
	if err != nil {
		log.Printf("[LEDGER] Delete entry %d failed: %v", id, err)
		s.audit.LogError("delete entry", id, deletedBy, err)
		return classify("delete entry", err)
	}

	log.Printf("[LEDGER] Entry %d deleted by %s", id, deletedBy)
	s.afterCommit(ctx, removed, models.ActionDelete, deletedBy, delta)
	return nil
}

// ClearPending zeroes the pending bookkeeping of an entry. Amounts are untouched,
// so no balance delta is produced and repeating the call is harmless.
func (s *LedgerService) ClearPending(ctx context.Context, id int64, changedBy string) (*models.LedgerEntry, error) {
	var cleared *models.LedgerEntry
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		entry, err := q.GetEntry(ctx, id)
		if err != nil {
			return entryNotFound(id, err)
		}

		switch entry.Kind {
		case models.KindRedeem:
			entry.RemainingPay = 0
		case models.KindDeposit:
			entry.Reduction = 0
		default:
			entry.RemainingPay = 0
			entry.Reduction = 0
		}
		entry.IsPending = false
		entry.UpdatedAt = s.now().UTC()

		if err := q.UpdateEntry(ctx, entry); err != nil {
			return entryNotFound(id, err)
		}
		cleared = entry
		return nil
	})
	if err != nil {
		log.Printf("[LEDGER] Clear pending on entry %d failed: %v", id, err)
		s.audit.LogError("clear pending", id, changedBy, err)
		return nil, classify("clear pending", err)
	}

	log.Printf("[LEDGER] Pending cleared on entry %d by %s", id, changedBy)
	s.afterCommit(ctx, cleared, models.ActionClearPending, changedBy, 0)
	return cleared, nil
}

// GetEntry loads one entry
func (s *LedgerService) GetEntry(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, classify("get entry", entryNotFound(id, err))
	}
	return entry, nil
}

// ListEntries returns matching entries oldest first, capped at the configured limit
func (s *LedgerService) ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	if filter.Limit <= 0 || filter.Limit > s.listLimit {
		filter.Limit = s.listLimit
	}

	entries, err := s.store.ListEntries(ctx, filter)
	if err != nil {
		log.Printf("[LEDGER] List entries failed: %v", err)
		return nil, classify("list entries", err)
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

// afterCommit runs the best-effort side effects of a committed mutation.
// They must survive the caller hanging up, so cancellation is detached.
func (s *LedgerService) afterCommit(ctx context.Context, entry *models.LedgerEntry, action models.HistoryAction, actor string, delta float64) {
	ctx = context.WithoutCancel(ctx)

	s.history.Record(ctx, entry, action, actor)
	s.cache.Invalidate(ctx)

	label := strings.ToUpper(strings.ReplaceAll(string(action), "-", "_"))
	s.audit.LogMutation(label, entry.ID, entry.Username, actor, entry.GameName, entry.AmountFinal, delta)
}

func (s *LedgerService) validateEntry(e *models.LedgerEntry) error {
	err := requireFinite(map[string]float64{
		"amountBase":   e.AmountBase,
		"amount":       e.Amount,
		"bonusRate":    e.BonusRate,
		"bonusAmount":  e.BonusAmount,
		"amountFinal":  e.AmountFinal,
		"totalPaid":    e.TotalPaid,
		"totalCashout": e.TotalCashout,
		"remainingPay": e.RemainingPay,
		"extraMoney":   e.ExtraMoney,
		"reduction":    e.Reduction,
	})
	if err != nil {
		return err
	}

	if err := s.validator.Validate(e); err != nil {
		return err
	}

	if e.Kind.IsCash() && e.Method == "" {
		return newValidationError("method", "is required for deposit and redeem entries")
	}
	return nil
}

// toEntry builds the row to insert. A missing date defaults to today in loc,
// the same calendar the day/week/month windows use.
func (req CreateEntryRequest) toEntry(now time.Time, loc *time.Location) *models.LedgerEntry {
	entry := &models.LedgerEntry{
		Username:     req.Username,
		CreatedBy:    req.CreatedBy,
		Kind:         req.Kind,
		Method:       req.Method,
		PlayerName:   req.PlayerName,
		PlayerTag:    req.PlayerTag,
		GameName:     req.GameName,
		AmountBase:   req.AmountBase,
		Amount:       req.AmountFinal,
		BonusRate:    req.BonusRate,
		BonusAmount:  req.BonusAmount,
		AmountFinal:  req.AmountFinal,
		Note:         req.Note,
		Date:         req.Date,
		TotalPaid:    req.TotalPaid,
		TotalCashout: req.TotalCashout,
		RemainingPay: req.RemainingPay,
		IsPending:    req.IsPending,
		ExtraMoney:   req.ExtraMoney,
		Reduction:    req.Reduction,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Amount != nil {
		entry.Amount = *req.Amount
	}
	if entry.Date == "" {
		if loc == nil {
			loc = time.UTC
		}
		entry.Date = now.In(loc).Format(time.DateOnly)
	}
	normalizeEntry(entry)
	return entry
}

// normalizeEntry trims free text and drops the payment method from kinds that carry none
func normalizeEntry(e *models.LedgerEntry) {
	e.Username = strings.TrimSpace(e.Username)
	e.CreatedBy = strings.TrimSpace(e.CreatedBy)
	e.GameName = strings.TrimSpace(e.GameName)
	e.PlayerName = strings.TrimSpace(e.PlayerName)
	e.PlayerTag = strings.TrimSpace(e.PlayerTag)
	e.Date = strings.TrimSpace(e.Date)
	e.Kind = models.EntryKind(strings.ToLower(strings.TrimSpace(string(e.Kind))))
	e.Method = models.PaymentMethod(strings.ToLower(strings.TrimSpace(string(e.Method))))
	if !e.Kind.IsCash() {
		e.Method = ""
	}
}

// mergeDeposit folds an incoming deposit into target, the player's latest deposit.
// Amounts and extra money accumulate, the first non-zero cashout sticks, and the
// outstanding reduction is recomputed from the merged totals.
func mergeDeposit(target, in *models.LedgerEntry) {
	target.AmountBase = addMoney(target.AmountBase, in.AmountBase)
	target.Amount = addMoney(target.Amount, in.Amount)
	target.AmountFinal = addMoney(target.AmountFinal, in.AmountFinal)
	if target.TotalCashout == 0 {
		target.TotalCashout = in.TotalCashout
	}
	target.ExtraMoney = addMoney(target.ExtraMoney, in.ExtraMoney)

	if in.PlayerName != "" {
		target.PlayerName = in.PlayerName
	}
	if in.Note != "" {
		target.Note = in.Note
	}
	if in.Date != "" {
		target.Date = in.Date
	}

	target.Reduction = outstanding(target.TotalCashout, target.AmountFinal)
	target.IsPending = target.Reduction > 0
	target.UpdatedAt = in.UpdatedAt
}

func (p EntryPatch) hasChanges() bool {
	return p.Kind != nil || p.Method != nil || p.PlayerName != nil || p.PlayerTag != nil ||
		p.GameName != nil || p.AmountBase != nil || p.Amount != nil || p.BonusRate != nil ||
		p.BonusAmount != nil || p.AmountFinal != nil || p.Note != nil || p.Date != nil ||
		p.TotalPaid != nil || p.TotalCashout != nil || p.RemainingPay != nil ||
		p.IsPending != nil || p.ExtraMoney != nil || p.Reduction != nil
}

func (p EntryPatch) applyTo(e *models.LedgerEntry) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}

	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	if p.Method != nil {
		e.Method = *p.Method
	}
	if p.IsPending != nil {
		e.IsPending = *p.IsPending
	}
	setString(&e.PlayerName, p.PlayerName)
	setString(&e.PlayerTag, p.PlayerTag)
	setString(&e.GameName, p.GameName)
	setString(&e.Note, p.Note)
	setString(&e.Date, p.Date)
	setFloat(&e.AmountBase, p.AmountBase)
	setFloat(&e.Amount, p.Amount)
	setFloat(&e.BonusRate, p.BonusRate)
	setFloat(&e.BonusAmount, p.BonusAmount)
	setFloat(&e.AmountFinal, p.AmountFinal)
	setFloat(&e.TotalPaid, p.TotalPaid)
	setFloat(&e.TotalCashout, p.TotalCashout)
	setFloat(&e.RemainingPay, p.RemainingPay)
	setFloat(&e.ExtraMoney, p.ExtraMoney)
	setFloat(&e.Reduction, p.Reduction)
}
