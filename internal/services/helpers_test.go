package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coinledger/backend/internal/audit"
	"github.com/coinledger/backend/internal/config"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
	"github.com/coinledger/backend/internal/repository/memory"
)

// stepClock returns a strictly increasing time on every call
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{t: start, step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

type ledgerFixture struct {
	store   *memory.Store
	history *memory.HistoryStore
	clock   *stepClock
	ledger  *LedgerService
	games   *GameBalanceService
	reports *ReportService
	records *HistoryService
}

func testLedgerConfig() *config.LedgerConfig {
	return &config.LedgerConfig{
		Location:     time.UTC,
		WeekStart:    time.Monday,
		ListLimit:    500,
		HistoryLimit: 200,
	}
}

func newLedgerFixture(t *testing.T, games ...string) *ledgerFixture {
	t.Helper()
	return newLedgerFixtureWithHistory(t, memory.NewHistoryStore(), games...)
}

func newLedgerFixtureWithHistory(t *testing.T, historyStore repository.HistoryStore, games ...string) *ledgerFixture {
	t.Helper()

	cfg := testLedgerConfig()
	store := memory.NewStore()
	clock := newStepClock(time.Date(2024, time.May, 17, 10, 0, 0, 0, time.UTC))
	auditLogger := audit.NewAuditLogger()

	balances := NewGameBalanceService(store, auditLogger)
	balances.now = clock.Now
	records := NewHistoryService(historyStore, auditLogger, cfg.HistoryLimit)
	records.now = clock.Now
	ledger := NewLedgerService(store, balances, records, NewSummaryCache(nil, 0), auditLogger, cfg)
	ledger.now = clock.Now
	reports := NewReportService(store, NewSummaryCache(nil, 0), cfg)
	reports.now = clock.Now

	for _, name := range games {
		_, err := balances.CreateGame(context.Background(), CreateGameRequest{Name: name})
		require.NoError(t, err)
	}

	f := &ledgerFixture{
		store:   store,
		clock:   clock,
		ledger:  ledger,
		games:   balances,
		reports: reports,
		records: records,
	}
	if hs, ok := historyStore.(*memory.HistoryStore); ok {
		f.history = hs
	}
	return f
}

func (f *ledgerFixture) totalCoins(t *testing.T, game string) float64 {
	t.Helper()
	g, err := f.games.GetGame(context.Background(), game)
	require.NoError(t, err)
	return g.TotalCoins
}

func (f *ledgerFixture) create(t *testing.T, req CreateEntryRequest) *models.LedgerEntry {
	t.Helper()
	entry, err := f.ledger.CreateEntry(context.Background(), req)
	require.NoError(t, err)
	return entry
}

func newEntryRequest(kind models.EntryKind, game string, amountFinal float64) CreateEntryRequest {
	req := CreateEntryRequest{
		Username:    "alice",
		CreatedBy:   "alice",
		Kind:        kind,
		GameName:    game,
		AmountBase:  amountFinal,
		AmountFinal: amountFinal,
	}
	if kind.IsCash() {
		req.Method = models.MethodCashApp
	}
	return req
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) InsertHistory(ctx context.Context, record *models.LedgerHistoryRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockHistoryStore) ListHistory(ctx context.Context, entryID int64, limit int) ([]models.LedgerHistoryRecord, error) {
	args := m.Called(ctx, entryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerHistoryRecord), args.Error(1)
}
