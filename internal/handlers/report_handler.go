package handlers

import (
	"net/http"

	"github.com/coinledger/backend/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ListPending returns the amounts still owed per player
// @Summary List pending balances
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param username query string false "Owner (admin only)"
// @Success 200 {array} models.PendingRow
// @Router /ledger/pending [get]
func (h *ReportHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "REPORT")
	if !ok {
		return
	}
	username, ok := scopeUsername(w, p, r.URL.Query().Get("username"))
	if !ok {
		return
	}

	rows, err := h.reports.ListPending(r.Context(), username)
	if err != nil {
		writeServiceError(w, "REPORT", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// LookupPending returns the pending balance of one player tag
// @Summary Pending balance by player tag
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param playerTag path string true "Player tag"
// @Param username query string false "Owner (required for admins)"
// @Success 200 {object} models.PendingRow
// @Failure 404 {object} services.ErrorResponse "Nothing pending"
// @Router /ledger/pending/{playerTag} [get]
func (h *ReportHandler) LookupPending(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "REPORT")
	if !ok {
		return
	}
	username, ok := scopeUsername(w, p, r.URL.Query().Get("username"))
	if !ok {
		return
	}

	playerTag, ok := pathText(w, r, "playerTag", "player tag")
	if !ok {
		return
	}

	row, err := h.reports.LookupPendingByTag(r.Context(), username, playerTag)
	if err != nil {
		writeServiceError(w, "REPORT", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Summary aggregates the ledger over a window
// @Summary Ledger summary
// @Description Either period (day, week, month) or explicit year/month/day filters on the entry date.
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param username query string false "Owner (admin only)"
// @Param period query string false "day, week or month"
// @Param year query int false "Year"
// @Param month query int false "Month"
// @Param day query int false "Day"
// @Success 200 {object} models.SummaryReport
// @Failure 400 {object} services.ErrorResponse
// @Router /ledger/summary [get]
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "REPORT")
	if !ok {
		return
	}
	username, ok := scopeUsername(w, p, r.URL.Query().Get("username"))
	if !ok {
		return
	}

	window := services.Window{Period: r.URL.Query().Get("period")}
	if window.Year, ok = queryInt(w, r, "year"); !ok {
		return
	}
	if window.Month, ok = queryInt(w, r, "month"); !ok {
		return
	}
	if window.Day, ok = queryInt(w, r, "day"); !ok {
		return
	}

	report, err := h.reports.Summarize(r.Context(), username, window)
	if err != nil {
		writeServiceError(w, "REPORT", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GameSummary aggregates one month per game
// @Summary Per-game summary
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param username query string false "Owner (admin only)"
// @Param year query int false "Year, defaults to the current one"
// @Param month query int false "Month, defaults to the current one"
// @Success 200 {array} models.GameSummary
// @Failure 400 {object} services.ErrorResponse
// @Router /ledger/summary/games [get]
func (h *ReportHandler) GameSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r, "REPORT")
	if !ok {
		return
	}
	username, ok := scopeUsername(w, p, r.URL.Query().Get("username"))
	if !ok {
		return
	}

	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month")
	if !ok {
		return
	}

	games, err := h.reports.SummarizeByGame(r.Context(), username, year, month)
	if err != nil {
		writeServiceError(w, "REPORT", err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}
