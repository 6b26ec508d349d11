package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/coinledger/backend/internal/audit"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

// GameBalanceService owns the materialized per-game coin totals.
// ApplyDelta is the only code path that changes a total.
type GameBalanceService struct {
	store     repository.LedgerStore
	audit     *audit.AuditLogger
	validator *ValidationHelper
	now       func() time.Time
}

// CreateGameRequest registers a game so that ledger entries move its balance
type CreateGameRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	CoinsRecharged float64 `json:"coinsRecharged" validate:"gte=0"`
}

func NewGameBalanceService(store repository.LedgerStore, auditLogger *audit.AuditLogger) *GameBalanceService {
	return &GameBalanceService{
		store:     store,
		audit:     auditLogger,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// ApplyDelta adds delta to the named game's totalCoins through q, so that it
// commits or rolls back together with the entry change that caused it.
// A game that is not registered is skipped and logged, never created.
func (s *GameBalanceService) ApplyDelta(ctx context.Context, q repository.Queries, gameName string, delta float64) error {
	if delta == 0 {
		return nil
	}

	applied, err := q.ApplyGameDelta(ctx, gameName, delta)
	if err != nil {
		return err
	}

	if !applied {
		log.Printf("[BALANCE] Game %q is not registered, delta %.2f ignored", gameName, delta)
		s.audit.LogSkipped("BALANCE_DELTA", 0, gameName, delta, "game not registered")
	}
	return nil
}

// CreateGame registers a game with a zero coin balance
func (s *GameBalanceService) CreateGame(ctx context.Context, req CreateGameRequest) (*models.GameBalance, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	if err := requireFinite(map[string]float64{"coinsRecharged": req.CoinsRecharged}); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	game := &models.GameBalance{
		Name:           req.Name,
		CoinsRecharged: req.CoinsRecharged,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.CoinsRecharged > 0 {
		game.LastRechargeDate = &now
	}

	if err := s.store.InsertGame(ctx, game); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, &ConflictError{Resource: "game", ID: req.Name}
		}
		log.Printf("[BALANCE] Failed to create game %q: %v", req.Name, err)
		return nil, classify("create game", err)
	}

	log.Printf("[BALANCE] Game %q registered", game.Name)
	return game, nil
}

// GetGame returns one game's balance row
func (s *GameBalanceService) GetGame(ctx context.Context, name string) (*models.GameBalance, error) {
	game, err := s.store.GetGame(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "game", ID: name}
	}
	if err != nil {
		return nil, classify("get game", err)
	}
	return game, nil
}

// ListGames returns every registered game ordered by name
func (s *GameBalanceService) ListGames(ctx context.Context) ([]models.GameBalance, error) {
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, classify("list games", err)
	}
	if games == nil {
		games = []models.GameBalance{}
	}
	return games, nil
}
