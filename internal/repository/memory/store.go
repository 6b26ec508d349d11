// Package memory provides in-memory repository implementations for tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

// Store implements repository.LedgerStore with transactional copy-on-write state
type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	entries     map[int64]models.LedgerEntry
	games       map[string]models.GameBalance
	nextEntryID int64
	nextGameID  int64
}

var _ repository.LedgerStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: &state{
		entries: make(map[int64]models.LedgerEntry),
		games:   make(map[string]models.GameBalance),
	}}
}

func (s *state) clone() *state {
	c := &state{
		entries:     make(map[int64]models.LedgerEntry, len(s.entries)),
		games:       make(map[string]models.GameBalance, len(s.games)),
		nextEntryID: s.nextEntryID,
		nextGameID:  s.nextGameID,
	}
	for id, e := range s.entries {
		c.entries[id] = e
	}
	for name, g := range s.games {
		c.games[name] = g
	}
	return c
}

// RunInTx runs fn against a private copy of the state and publishes it only on success
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(draft); err != nil {
		return err
	}
	s.st = draft
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetEntry(ctx, id)
}

func (s *Store) LatestDeposit(ctx context.Context, username, playerTag string) (*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LatestDeposit(ctx, username, playerTag)
}

func (s *Store) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertEntry(ctx, entry)
}

func (s *Store) UpdateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateEntry(ctx, entry)
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteEntry(ctx, id)
}

func (s *Store) ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListEntries(ctx, filter)
}

func (s *Store) ApplyGameDelta(ctx context.Context, gameName string, delta float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ApplyGameDelta(ctx, gameName, delta)
}

func (s *Store) GetGame(ctx context.Context, name string) (*models.GameBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetGame(ctx, name)
}

func (s *Store) ListGames(ctx context.Context) ([]models.GameBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListGames(ctx)
}

func (s *Store) InsertGame(ctx context.Context, game *models.GameBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertGame(ctx, game)
}

func (s *state) GetEntry(_ context.Context, id int64) (*models.LedgerEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (s *state) LatestDeposit(_ context.Context, username, playerTag string) (*models.LedgerEntry, error) {
	var latest *models.LedgerEntry
	for _, e := range s.entries {
		if e.Username != username || e.PlayerTag != playerTag || e.Kind != models.KindDeposit {
			continue
		}
		if latest == nil || createdBefore(*latest, e) {
			e := e
			latest = &e
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (s *state) InsertEntry(_ context.Context, entry *models.LedgerEntry) error {
	s.nextEntryID++
	entry.ID = s.nextEntryID
	s.entries[entry.ID] = *entry
	return nil
}

func (s *state) UpdateEntry(_ context.Context, entry *models.LedgerEntry) error {
	if _, ok := s.entries[entry.ID]; !ok {
		return repository.ErrNotFound
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *state) DeleteEntry(_ context.Context, id int64) error {
	if _, ok := s.entries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *state) ListEntries(_ context.Context, f models.EntryFilter) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return createdBefore(out[i], out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *state) ApplyGameDelta(_ context.Context, gameName string, delta float64) (bool, error) {
	g, ok := s.games[gameName]
	if !ok {
		return false, nil
	}
	g.TotalCoins += delta
	g.UpdatedAt = time.Now()
	s.games[gameName] = g
	return true, nil
}

func (s *state) GetGame(_ context.Context, name string) (*models.GameBalance, error) {
	g, ok := s.games[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (s *state) ListGames(_ context.Context) ([]models.GameBalance, error) {
	out := make([]models.GameBalance, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) InsertGame(_ context.Context, game *models.GameBalance) error {
	if _, ok := s.games[game.Name]; ok {
		return repository.ErrAlreadyExists
	}
	s.nextGameID++
	game.ID = s.nextGameID
	s.games[game.Name] = *game
	return nil
}

func createdBefore(a, b models.LedgerEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func matches(e models.LedgerEntry, f models.EntryFilter) bool {
	if f.Username != "" && e.Username != f.Username {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.GameName != "" && e.GameName != f.GameName {
		return false
	}
	if f.PlayerTag != nil && e.PlayerTag != *f.PlayerTag {
		return false
	}
	if f.CreatedFrom != nil && e.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !e.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	if f.DatePrefix != "" && !strings.HasPrefix(e.Date, f.DatePrefix) {
		return false
	}
	return true
}
