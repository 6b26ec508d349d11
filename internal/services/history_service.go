package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coinledger/backend/internal/audit"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

// HistoryService appends audit rows for ledger mutations.
// Recording is best-effort: a failed write is logged and never reaches the caller.
type HistoryService struct {
	store repository.HistoryStore
	audit *audit.AuditLogger
	limit int
	now   func() time.Time
}

func NewHistoryService(store repository.HistoryStore, auditLogger *audit.AuditLogger, limit int) *HistoryService {
	return &HistoryService{
		store: store,
		audit: auditLogger,
		limit: limit,
		now:   time.Now,
	}
}

// Record snapshots entry under action
func (s *HistoryService) Record(ctx context.Context, entry *models.LedgerEntry, action models.HistoryAction, changedBy string) {
	record := models.NewHistoryRecord(entry, action, changedBy, s.now().UTC())
	record.ID = uuid.NewString()

	if err := s.store.InsertHistory(ctx, &record); err != nil {
		log.Printf("[HISTORY] Failed to record %s for entry %d: %v", action, entry.ID, err)
		s.audit.LogError("history "+string(action), entry.ID, entry.Username, err)
	}
}

// ListHistory returns the audit rows of an entry, newest first.
// Rows outlive their entry, so a deleted entry still has history.
func (s *HistoryService) ListHistory(ctx context.Context, entryID int64) ([]models.LedgerHistoryRecord, error) {
	records, err := s.store.ListHistory(ctx, entryID, s.limit)
	if err != nil {
		log.Printf("[HISTORY] Failed to list history for entry %d: %v", entryID, err)
		return nil, classify("list history", err)
	}
	if records == nil {
		records = []models.LedgerHistoryRecord{}
	}
	return records, nil
}
