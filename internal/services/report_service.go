package services

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/coinledger/backend/internal/config"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

var cashKinds = []models.EntryKind{models.KindDeposit, models.KindRedeem}

// ReportService computes the read-only views over the ledger: pending
// balances and windowed summaries. It never mutates state.
type ReportService struct {
	store     repository.LedgerStore
	cache     *SummaryCache
	validator *ValidationHelper
	location  *time.Location
	weekStart time.Weekday
	now       func() time.Time
}

func NewReportService(store repository.LedgerStore, cache *SummaryCache, cfg *config.LedgerConfig) *ReportService {
	return &ReportService{
		store:     store,
		cache:     cache,
		validator: NewValidationHelper(),
		location:  cfg.Location,
		weekStart: cfg.WeekStart,
		now:       time.Now,
	}
}

// ListPending resolves the pending rows for username, or for everyone when empty
func (s *ReportService) ListPending(ctx context.Context, username string) ([]models.PendingRow, error) {
	entries, err := s.store.ListEntries(ctx, models.EntryFilter{
		Username: username,
		Kinds:    cashKinds,
	})
	if err != nil {
		log.Printf("[REPORT] Failed to load entries for pending list: %v", err)
		return nil, classify("list pending", err)
	}
	return ResolvePending(entries), nil
}

// LookupPendingByTag resolves the pending row of one player. NotFoundError means
// nothing is owed, which is different from a row with a zero amount.
func (s *ReportService) LookupPendingByTag(ctx context.Context, username, playerTag string) (*models.PendingRow, error) {
	username = strings.TrimSpace(username)
	playerTag = strings.TrimSpace(playerTag)
	if username == "" {
		return nil, newValidationError("username", "is required")
	}
	if playerTag == "" {
		return nil, newValidationError("playerTag", "is required")
	}

	entries, err := s.store.ListEntries(ctx, models.EntryFilter{
		Username:  username,
		Kinds:     cashKinds,
		PlayerTag: &playerTag,
	})
	if err != nil {
		return nil, classify("lookup pending", err)
	}

	rows := ResolvePending(entries)
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "pending balance", ID: playerTag}
	}
	return &rows[0], nil
}

// Summarize aggregates the entries of username (everyone when empty) inside window
func (s *ReportService) Summarize(ctx context.Context, username string, window Window) (*models.SummaryReport, error) {
	if err := window.check(s.validator); err != nil {
		return nil, err
	}
	resolved := window.resolve(s.now(), s.location, s.weekStart)

	key, cacheable := s.cache.Key(ctx, "summary", username, resolved.label)
	if cacheable {
		var cached models.SummaryReport
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	filter := models.EntryFilter{Username: username}
	resolved.apply(&filter)
	entries, err := s.store.ListEntries(ctx, filter)
	if err != nil {
		log.Printf("[REPORT] Failed to load entries for summary %s: %v", resolved.label, err)
		return nil, classify("summarize", err)
	}

	report := summarize(entries)
	report.Username = username
	report.Window = resolved.label

	if cacheable {
		s.cache.Set(ctx, key, report)
	}
	return report, nil
}

// SummarizeByGame returns per-game totals for one month, the current one when
// year and month are zero. Games are ordered by name.
func (s *ReportService) SummarizeByGame(ctx context.Context, username string, year, month int) ([]models.GameSummary, error) {
	if year == 0 && month == 0 {
		local := s.now().In(s.location)
		year, month = local.Year(), int(local.Month())
	}
	window := Window{Year: year, Month: month}
	if err := window.check(s.validator); err != nil {
		return nil, err
	}
	if month == 0 {
		return nil, newValidationError("month", "is required")
	}
	resolved := window.resolveDate()

	key, cacheable := s.cache.Key(ctx, "games", username, resolved.label)
	if cacheable {
		var cached []models.GameSummary
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	filter := models.EntryFilter{Username: username}
	resolved.apply(&filter)
	entries, err := s.store.ListEntries(ctx, filter)
	if err != nil {
		log.Printf("[REPORT] Failed to load entries for game summary %s: %v", resolved.label, err)
		return nil, classify("summarize by game", err)
	}

	games := summarizeByGame(entries)
	if cacheable {
		s.cache.Set(ctx, key, games)
	}
	return games, nil
}

// kindTotals sums amountOf per kind
type kindTotals struct {
	freeplay, playedGame, deposit, redeem moneySum
}

func (t *kindTotals) add(e *models.LedgerEntry) {
	amount := amountOf(e)
	switch e.Kind {
	case models.KindFreeplay:
		t.freeplay.Add(amount)
	case models.KindPlayedGame:
		t.playedGame.Add(amount)
	case models.KindDeposit:
		t.deposit.Add(amount)
	case models.KindRedeem:
		t.redeem.Add(amount)
	}
}

// net is redeem - (freeplay + played-game + deposit)
func (t *kindTotals) net() float64 {
	out := t.redeem.total.Sub(t.freeplay.total).Sub(t.playedGame.total).Sub(t.deposit.total)
	return out.InexactFloat64()
}

func summarize(entries []models.LedgerEntry) *models.SummaryReport {
	var (
		totals     kindTotals
		reduction  moneySum
		extraMoney moneySum
		revenue    moneySum
	)
	byMethod := make(map[models.PaymentMethod]*moneySum, len(models.AllMethods))
	for _, m := range models.AllMethods {
		byMethod[m] = &moneySum{}
	}

	for i := range entries {
		e := &entries[i]
		totals.add(e)
		reduction.Add(finiteOrZero(e.Reduction))
		extraMoney.Add(finiteOrZero(e.ExtraMoney))

		if e.Kind == models.KindDeposit {
			base := finiteOrZero(e.AmountBase)
			sum, ok := byMethod[e.Method]
			if !ok {
				sum = &moneySum{}
				byMethod[e.Method] = sum
			}
			sum.Add(base)
			revenue.Add(base)
		}
	}

	pending := ResolvePending(entries)
	report := &models.SummaryReport{
		TotalFreeplay:    totals.freeplay.Float(),
		TotalPlayedGame:  totals.playedGame.Float(),
		TotalDeposit:     totals.deposit.Float(),
		TotalRedeem:      totals.redeem.Float(),
		NetCoin:          totals.net(),
		Pending:          pending,
		PendingCount:     len(pending),
		PendingTotal:     sumPending(pending),
		TotalReduction:   reduction.Float(),
		TotalExtraMoney:  extraMoney.Float(),
		DepositsByMethod: make(map[models.PaymentMethod]float64, len(byMethod)),
		TotalRevenue:     revenue.Float(),
		EntryCount:       len(entries),
	}
	for m, sum := range byMethod {
		report.DepositsByMethod[m] = sum.Float()
	}
	return report
}

func summarizeByGame(entries []models.LedgerEntry) []models.GameSummary {
	perGame := make(map[string]*kindTotals)
	for i := range entries {
		e := &entries[i]
		t, ok := perGame[e.GameName]
		if !ok {
			t = &kindTotals{}
			perGame[e.GameName] = t
		}
		t.add(e)
	}

	out := make([]models.GameSummary, 0, len(perGame))
	for name, t := range perGame {
		out = append(out, models.GameSummary{
			GameName:        name,
			TotalFreeplay:   t.freeplay.Float(),
			TotalPlayedGame: t.playedGame.Float(),
			TotalDeposit:    t.deposit.Float(),
			TotalRedeem:     t.redeem.Float(),
			TotalCoins:      t.net(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameName < out[j].GameName })
	return out
}

// amountOf is amountFinal, falling back to amount, falling back to zero
func amountOf(e *models.LedgerEntry) float64 {
	if v := finiteOrZero(e.AmountFinal); v > 0 {
		return v
	}
	if v := finiteOrZero(e.Amount); v > 0 {
		return v
	}
	return 0
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

