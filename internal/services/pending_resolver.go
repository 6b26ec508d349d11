package services

import (
	"sort"

	"github.com/coinledger/backend/internal/models"
)

type pendingKey struct {
	username  string
	playerTag string
}

// pendingState is everything the resolver keeps per (username, playerTag)
type pendingState struct {
	lastDeposit *models.LedgerEntry
	lastRedeem  *models.LedgerEntry
}

func (st *pendingState) observe(e *models.LedgerEntry) {
	switch e.Kind {
	case models.KindDeposit:
		st.lastDeposit = e
	case models.KindRedeem:
		st.lastRedeem = e
	}
}

// resolve picks the amount still owed for the group. A deposit always wins over
// a redeem, even when the deposit carries no reduction.
func (st *pendingState) resolve() (models.PendingRow, bool) {
	if d := st.lastDeposit; d != nil {
		row := pendingRowFrom(d, models.PendingFromDeposit)
		row.PendingAmount = d.Reduction
		row.Reduction = d.Reduction
		return row, row.PendingAmount > 0
	}

	if r := st.lastRedeem; r != nil && r.IsPending {
		row := pendingRowFrom(r, models.PendingFromRedeem)
		if r.RemainingPay > 0 {
			row.PendingAmount = r.RemainingPay
		} else {
			row.PendingAmount = subMoney(r.TotalCashout, r.TotalPaid)
		}
		return row, row.PendingAmount > 0
	}

	return models.PendingRow{}, false
}

// ResolvePending folds deposit and redeem entries into one pending row per
// (username, playerTag). Other kinds are ignored. Rows come back newest first.
func ResolvePending(entries []models.LedgerEntry) []models.PendingRow {
	ordered := make([]*models.LedgerEntry, 0, len(entries))
	for i := range entries {
		if entries[i].Kind == models.KindDeposit || entries[i].Kind == models.KindRedeem {
			ordered = append(ordered, &entries[i])
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return createdBefore(ordered[i], ordered[j])
	})

	states := make(map[pendingKey]*pendingState)
	for _, e := range ordered {
		key := pendingKey{username: e.Username, playerTag: e.PlayerTag}
		st, ok := states[key]
		if !ok {
			st = &pendingState{}
			states[key] = st
		}
		st.observe(e)
	}

	rows := make([]models.PendingRow, 0, len(states))
	sources := make(map[int64]*models.LedgerEntry, len(states))
	for _, st := range states {
		if row, ok := st.resolve(); ok {
			rows = append(rows, row)
			if st.lastDeposit != nil {
				sources[row.EntryID] = st.lastDeposit
			} else {
				sources[row.EntryID] = st.lastRedeem
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return createdBefore(sources[rows[j].EntryID], sources[rows[i].EntryID])
	})
	return rows
}

// createdBefore orders entries by creation time, then by id
func createdBefore(a, b *models.LedgerEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func pendingRowFrom(e *models.LedgerEntry, source models.PendingSource) models.PendingRow {
	return models.PendingRow{
		Username:     e.Username,
		PlayerTag:    e.PlayerTag,
		PlayerName:   e.PlayerName,
		GameName:     e.GameName,
		Method:       e.Method,
		TotalPaid:    e.TotalPaid,
		TotalCashout: e.TotalCashout,
		Source:       source,
		EntryID:      e.ID,
		UpdatedAt:    e.UpdatedAt,
	}
}

func sumPending(rows []models.PendingRow) float64 {
	var total moneySum
	for _, r := range rows {
		total.Add(r.PendingAmount)
	}
	return total.Float()
}
