package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/services"
)

type LedgerHandler struct {
	ledger  *services.LedgerService
	history *services.HistoryService
}

func NewLedgerHandler(ledger *services.LedgerService, history *services.HistoryService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, history: history}
}

// CreateEntry records a ledger entry
// @Summary Create ledger entry
// @Description Record a deposit, redeem, freeplay or played-game entry. A deposit with a reduction for a known player tag is merged into that player's latest deposit.
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateEntryRequest true "Entry"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /ledger/entries [post]
func (h *LedgerHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "LEDGER")
	if !ok {
		return
	}

	var req services.CreateEntryRequest
	if !decodeJSON(w, r, "LEDGER", &req) {
		return
	}

	username, ok := scopeUsername(w, p, req.Username)
	if !ok {
		return
	}
	if username == "" {
		username = p.Username
	}
	req.Username = username
	req.CreatedBy = p.Username

	entry, err := h.ledger.CreateEntry(r.Context(), req)
	if err != nil {
		writeServiceError(w, "LEDGER", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListEntries lists ledger entries oldest first
// @Summary List ledger entries
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param username query string false "Owner (admin only)"
// @Param kind query string false "Comma separated kinds"
// @Param gameName query string false "Game name"
// @Param playerTag query string false "Player tag"
// @Param date query string false "Date prefix: YYYY, YYYY-MM or YYYY-MM-DD"
// @Param limit query int false "Maximum rows"
// @Success 200 {array} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Router /ledger/entries [get]
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "LEDGER")
	if !ok {
		return
	}

	q := r.URL.Query()
	username, ok := scopeUsername(w, p, q.Get("username"))
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	filter := models.EntryFilter{
		Username: username,
		GameName: strings.TrimSpace(q.Get("gameName")),
		Limit:    limit,
	}
	if q.Has("playerTag") {
		tag := strings.TrimSpace(q.Get("playerTag"))
		filter.PlayerTag = &tag
	}
	if raw := q.Get("kind"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			kind := models.EntryKind(strings.TrimSpace(k))
			if !kind.Valid() {
				services.SendErrorResponse(w, "Invalid kind "+string(kind), http.StatusBadRequest, nil)
				return
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}
	if raw := q.Get("date"); raw != "" {
		if !validDatePrefix(raw) {
			services.SendErrorResponse(w, "date must be YYYY, YYYY-MM or YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		filter.DatePrefix = raw
	}

	entries, err := h.ledger.ListEntries(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "LEDGER", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// UpdateEntry edits an entry and rebalances the affected games
// @Summary Update ledger entry
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Param request body services.EntryPatch true "Fields to change"
// @Success 200 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /ledger/entries/{id} [put]
func (h *LedgerHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.authorizeEntry(w, r)
	if !ok {
		return
	}

	var patch services.EntryPatch
	if !decodeJSON(w, r, "LEDGER", &patch) {
		return
	}

	entry, err := h.ledger.UpdateEntry(r.Context(), id, patch, p.Username)
	if err != nil {
		writeServiceError(w, "LEDGER", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry reverses an entry's coin effect and removes it
// @Summary Delete ledger entry
// @Tags ledger
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Success 204
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /ledger/entries/{id} [delete]
func (h *LedgerHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.authorizeEntry(w, r)
	if !ok {
		return
	}

	if err := h.ledger.DeleteEntry(r.Context(), id, p.Username); err != nil {
		writeServiceError(w, "LEDGER", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearPending zeroes the pending fields of an entry
// @Summary Clear pending
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /ledger/entries/{id}/clear-pending [post]
func (h *LedgerHandler) ClearPending(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.authorizeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.ledger.ClearPending(r.Context(), id, p.Username)
	if err != nil {
		writeServiceError(w, "LEDGER", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ListHistory returns the audit rows of an entry, newest first
// @Summary Entry history
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Success 200 {array} models.LedgerHistoryRecord
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /ledger/entries/{id}/history [get]
func (h *LedgerHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "LEDGER")
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Admins may read the trail of deleted entries.
	entry, err := h.ledger.GetEntry(r.Context(), id)
	var nErr *services.NotFoundError
	switch {
	case err == nil:
		if !p.IsAdmin() && entry.Username != p.Username {
			services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
			return
		}
	case errors.As(err, &nErr) && p.IsAdmin():
	default:
		writeServiceError(w, "LEDGER", err)
		return
	}

	records, err := h.history.ListHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, "LEDGER", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// authorizeEntry loads the addressed entry and checks the caller may change it
func (h *LedgerHandler) authorizeEntry(w http.ResponseWriter, r *http.Request) (models.Principal, int64, bool) {
	p, ok := currentPrincipal(w, r, "LEDGER")
	if !ok {
		return p, 0, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return p, 0, false
	}

	entry, err := h.ledger.GetEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, "LEDGER", err)
		return p, 0, false
	}
	if !p.IsAdmin() && entry.Username != p.Username {
		log.Printf("[LEDGER] %s denied access to entry %d owned by %s", p.Username, id, entry.Username)
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return p, 0, false
	}
	return p, id, true
}

func validDatePrefix(s string) bool {
	layouts := map[int]string{4: "2006", 7: "2006-01", 10: time.DateOnly}
	layout, ok := layouts[len(s)]
	if !ok {
		return false
	}
	_, err := time.Parse(layout, s)
	return err == nil
}
