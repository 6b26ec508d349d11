package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

// HistoryStore keeps audit rows in insertion order
type HistoryStore struct {
	mu      sync.RWMutex
	records []models.LedgerHistoryRecord
}

var _ repository.HistoryStore = (*HistoryStore)(nil)

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (h *HistoryStore) InsertHistory(_ context.Context, record *models.LedgerHistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *record)
	return nil
}

func (h *HistoryStore) ListHistory(_ context.Context, entryID int64, limit int) ([]models.LedgerHistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []models.LedgerHistoryRecord
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].EntryID == entryID {
			out = append(out, h.records[i])
		}
	}
	// insertion order breaks ties between equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserStore keeps operator accounts keyed by lower-cased username
type UserStore struct {
	mu     sync.RWMutex
	users  map[string]models.User
	nextID int64
}

var _ repository.UserStore = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]models.User)}
}

func (u *UserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	user, ok := u.users[strings.ToLower(username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (u *UserStore) InsertUser(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, ok := u.users[key]; ok {
		return repository.ErrAlreadyExists
	}
	u.nextID++
	user.ID = u.nextID
	user.Username = key
	u.users[key] = *user
	return nil
}
