package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinledger/backend/internal/audit"
	"github.com/coinledger/backend/internal/config"
	mW "github.com/coinledger/backend/internal/middleware"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository/memory"
	"github.com/coinledger/backend/internal/services"
)

var (
	alice = models.Principal{Username: "alice", Role: models.RoleUser}
	bob   = models.Principal{Username: "bob", Role: models.RoleUser}
	root  = models.Principal{Username: "root", Role: models.RoleAdmin}
)

type testServer struct {
	router http.Handler
	games  *services.GameBalanceService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.LedgerConfig{Location: time.UTC, WeekStart: time.Monday, ListLimit: 100, HistoryLimit: 50}
	store := memory.NewStore()
	auditLogger := audit.NewAuditLogger()
	cache := services.NewSummaryCache(nil, 0)

	games := services.NewGameBalanceService(store, auditLogger)
	history := services.NewHistoryService(memory.NewHistoryStore(), auditLogger, cfg.HistoryLimit)
	ledger := services.NewLedgerService(store, games, history, cache, auditLogger, cfg)
	reports := services.NewReportService(store, cache, cfg)

	ledgerHandler := NewLedgerHandler(ledger, history)
	reportHandler := NewReportHandler(reports)
	gameHandler := NewGameHandler(games)

	r := chi.NewRouter()
	r.Post("/ledger/entries", ledgerHandler.CreateEntry)
	r.Get("/ledger/entries", ledgerHandler.ListEntries)
	r.Put("/ledger/entries/{id}", ledgerHandler.UpdateEntry)
	r.Delete("/ledger/entries/{id}", ledgerHandler.DeleteEntry)
	r.Post("/ledger/entries/{id}/clear-pending", ledgerHandler.ClearPending)
	r.Get("/ledger/entries/{id}/history", ledgerHandler.ListHistory)
	r.Get("/ledger/pending", reportHandler.ListPending)
	r.Get("/ledger/pending/{playerTag}", reportHandler.LookupPending)
	r.Get("/ledger/summary", reportHandler.Summary)
	r.Get("/ledger/summary/games", reportHandler.GameSummary)
	r.Get("/games", gameHandler.ListGames)
	r.Get("/games/{name}", gameHandler.GetGame)
	r.With(mW.RequireAdmin).Post("/games", gameHandler.CreateGame)

	_, err := games.CreateGame(context.Background(), services.CreateGameRequest{Name: "Fire Kirin"})
	require.NoError(t, err)

	return &testServer{router: r, games: games}
}

// do sends a request as p; a zero principal sends it anonymously
func (s *testServer) do(p models.Principal, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}

	r := httptest.NewRequest(method, target, &buf)
	if p.Username != "" {
		r = r.WithContext(mW.WithPrincipal(r.Context(), p))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func (s *testServer) createEntry(t *testing.T, p models.Principal, body map[string]any) models.LedgerEntry {
	t.Helper()
	w := s.do(p, "POST", "/ledger/entries", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var entry models.LedgerEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	return entry
}

func deposit(amount float64) map[string]any {
	return map[string]any{
		"kind":        "deposit",
		"method":      "cashapp",
		"gameName":    "Fire Kirin",
		"amountBase":  amount,
		"amountFinal": amount,
	}
}

func TestLedgerHandler_CreateEntry(t *testing.T) {
	s := newTestServer(t)

	t.Run("created for the caller", func(t *testing.T) {
		entry := s.createEntry(t, alice, deposit(100))
		assert.Equal(t, "alice", entry.Username)
		assert.Equal(t, "alice", entry.CreatedBy)
		assert.NotZero(t, entry.ID)

		game, err := s.games.GetGame(context.Background(), "Fire Kirin")
		require.NoError(t, err)
		assert.Equal(t, -100.0, game.TotalCoins)
	})

	t.Run("created by cannot be supplied", func(t *testing.T) {
		body := deposit(5)
		body["createdBy"] = "mallory"
		w := s.do(alice, "POST", "/ledger/entries", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("users cannot write for someone else", func(t *testing.T) {
		body := deposit(10)
		body["username"] = "bob"
		w := s.do(alice, "POST", "/ledger/entries", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admins can write for anyone", func(t *testing.T) {
		body := deposit(10)
		body["username"] = "bob"
		entry := s.createEntry(t, root, body)
		assert.Equal(t, "bob", entry.Username)
		assert.Equal(t, "root", entry.CreatedBy)
	})

	t.Run("validation errors carry field details", func(t *testing.T) {
		body := deposit(10)
		delete(body, "method")
		w := s.do(alice, "POST", "/ledger/entries", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response services.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "method")
	})

	t.Run("unregistered game is recorded without a balance", func(t *testing.T) {
		body := deposit(10)
		body["gameName"] = "Nope"
		s.createEntry(t, alice, body)

		w := s.do(alice, "GET", "/games/Nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "POST", "/ledger/entries", "{").Code)
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "POST", "/ledger/entries", `{"kind":"deposit","bogus":1}`).Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := s.do(models.Principal{}, "POST", "/ledger/entries", deposit(1))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLedgerHandler_Ownership(t *testing.T) {
	s := newTestServer(t)
	entry := s.createEntry(t, alice, deposit(100))
	target := fmt.Sprintf("/ledger/entries/%d", entry.ID)

	t.Run("other users are forbidden", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, s.do(bob, "PUT", target, map[string]any{"note": "mine"}).Code)
		assert.Equal(t, http.StatusForbidden, s.do(bob, "DELETE", target, nil).Code)
		assert.Equal(t, http.StatusForbidden, s.do(bob, "POST", target+"/clear-pending", nil).Code)
		assert.Equal(t, http.StatusForbidden, s.do(bob, "GET", target+"/history", nil).Code)
	})

	t.Run("owner updates", func(t *testing.T) {
		w := s.do(alice, "PUT", target, map[string]any{"amountFinal": 60})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated models.LedgerEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, 60.0, updated.AmountFinal)

		game, err := s.games.GetGame(context.Background(), "Fire Kirin")
		require.NoError(t, err)
		assert.Equal(t, -60.0, game.TotalCoins)
	})

	t.Run("empty patch", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "PUT", target, map[string]any{}).Code)
	})

	t.Run("history", func(t *testing.T) {
		w := s.do(alice, "GET", target+"/history", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var records []models.LedgerHistoryRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		require.Len(t, records, 2)
		assert.Equal(t, models.ActionUpdate, records[0].Action)
	})

	t.Run("admin deletes and can still read the trail", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, s.do(root, "DELETE", target, nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(alice, "DELETE", target, nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(alice, "GET", target+"/history", nil).Code)

		w := s.do(root, "GET", target+"/history", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var records []models.LedgerHistoryRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		assert.Equal(t, models.ActionDelete, records[0].Action)
	})

	t.Run("bad id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "DELETE", "/ledger/entries/abc", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "DELETE", "/ledger/entries/0", nil).Code)
	})
}

func TestLedgerHandler_ListEntries(t *testing.T) {
	s := newTestServer(t)
	s.createEntry(t, alice, deposit(10))
	s.createEntry(t, alice, map[string]any{"kind": "freeplay", "gameName": "Fire Kirin", "amountFinal": 3})
	s.createEntry(t, bob, deposit(20))

	list := func(p models.Principal, query string) []models.LedgerEntry {
		w := s.do(p, "GET", "/ledger/entries"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var entries []models.LedgerEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		return entries
	}

	assert.Len(t, list(alice, ""), 2)
	assert.Len(t, list(alice, "?kind=freeplay"), 1)
	assert.Len(t, list(alice, "?kind=deposit,freeplay&limit=1"), 1)
	assert.Len(t, list(root, ""), 3)
	assert.Len(t, list(root, "?username=bob"), 1)

	today := time.Now().Format("2006")
	assert.Len(t, list(alice, "?date="+today), 2)

	assert.Equal(t, http.StatusForbidden, s.do(alice, "GET", "/ledger/entries?username=bob", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/entries?kind=bonus", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(alice, "GET", "/ledger/entries?kind=played-game,deposit", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/entries?date=2024-5", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/entries?limit=ten", nil).Code)
}

func TestReportHandler(t *testing.T) {
	s := newTestServer(t)

	owed := map[string]any{
		"kind":         "redeem",
		"method":       "paypal",
		"gameName":     "Fire Kirin",
		"playerTag":    "p1",
		"amountFinal":  80,
		"totalCashout": 80,
		"remainingPay": 50,
		"isPending":    true,
	}
	entry := s.createEntry(t, alice, owed)

	t.Run("pending list", func(t *testing.T) {
		w := s.do(alice, "GET", "/ledger/pending", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rows []models.PendingRow
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, 50.0, rows[0].PendingAmount)

		w = s.do(bob, "GET", "/ledger/pending", nil)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("pending lookup", func(t *testing.T) {
		w := s.do(alice, "GET", "/ledger/pending/p1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, http.StatusNotFound, s.do(alice, "GET", "/ledger/pending/p2", nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(bob, "GET", "/ledger/pending/p1", nil).Code)
		assert.Equal(t, http.StatusOK, s.do(root, "GET", "/ledger/pending/p1?username=alice", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(root, "GET", "/ledger/pending/p1", nil).Code)
	})

	t.Run("pending lookup unescapes the tag", func(t *testing.T) {
		slashed := map[string]any{
			"kind":         "redeem",
			"method":       "paypal",
			"gameName":     "Fire Kirin",
			"playerTag":    "a/b",
			"amountFinal":  10,
			"totalCashout": 10,
			"remainingPay": 10,
			"isPending":    true,
		}
		s.createEntry(t, bob, slashed)

		w := s.do(bob, "GET", "/ledger/pending/a%2Fb", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var row models.PendingRow
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
		assert.Equal(t, "a/b", row.PlayerTag)
		assert.Equal(t, 10.0, row.PendingAmount)
	})

	t.Run("summary", func(t *testing.T) {
		w := s.do(alice, "GET", "/ledger/summary?period=day", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var report models.SummaryReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 80.0, report.TotalRedeem)
		assert.Equal(t, 80.0, report.NetCoin)
		assert.Equal(t, 50.0, report.PendingTotal)
	})

	t.Run("summary rejects bad windows", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/summary?period=decade", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/summary?period=day&year=2024", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/summary?month=3", nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/summary?year=x", nil).Code)
	})

	t.Run("game summary", func(t *testing.T) {
		w := s.do(alice, "GET", "/ledger/summary/games", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var games []models.GameSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &games))
		require.Len(t, games, 1)
		assert.Equal(t, 80.0, games[0].TotalCoins)

		assert.Equal(t, http.StatusBadRequest, s.do(alice, "GET", "/ledger/summary/games?year=2024", nil).Code)
	})

	t.Run("clearing empties the pending list", func(t *testing.T) {
		w := s.do(alice, "POST", fmt.Sprintf("/ledger/entries/%d/clear-pending", entry.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var cleared models.LedgerEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
		assert.False(t, cleared.IsPending)
		assert.Zero(t, cleared.RemainingPay)

		assert.Equal(t, http.StatusNotFound, s.do(alice, "GET", "/ledger/pending/p1", nil).Code)
	})
}

func TestGameHandler(t *testing.T) {
	s := newTestServer(t)

	t.Run("only admins register games", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, s.do(alice, "POST", "/games", map[string]any{"name": "Juwa"}).Code)
		assert.Equal(t, http.StatusCreated, s.do(root, "POST", "/games", map[string]any{"name": "Juwa"}).Code)
		assert.Equal(t, http.StatusConflict, s.do(root, "POST", "/games", map[string]any{"name": "Juwa"}).Code)
	})

	t.Run("list and get", func(t *testing.T) {
		w := s.do(alice, "GET", "/games", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var games []models.GameBalance
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &games))
		assert.Len(t, games, 2)

		assert.Equal(t, http.StatusOK, s.do(alice, "GET", "/games/Juwa", nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(alice, "GET", "/games/Missing", nil).Code)
		assert.Equal(t, http.StatusOK, s.do(alice, "GET", "/games/Fire%20Kirin", nil).Code)
	})
}
