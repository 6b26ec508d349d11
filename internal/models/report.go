package models

import "time"

// PendingSource tells which entry kind a pending amount was resolved from
type PendingSource string

const (
	PendingFromDeposit PendingSource = "deposit"
	PendingFromRedeem  PendingSource = "redeem"
)

// PendingRow is the resolved amount still owed for one (username, playerTag) pair
type PendingRow struct {
	Username      string        `json:"username"`
	PlayerTag     string        `json:"playerTag"`
	PlayerName    string        `json:"playerName"`
	GameName      string        `json:"gameName"`
	Method        PaymentMethod `json:"method,omitempty"`
	TotalPaid     float64       `json:"totalPaid"`
	TotalCashout  float64       `json:"totalCashout"`
	PendingAmount float64       `json:"pendingAmount"`
	Reduction     float64       `json:"reduction"`
	Source        PendingSource `json:"source"`
	EntryID       int64         `json:"entryId"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// SummaryReport aggregates the ledger over one scope and window
type SummaryReport struct {
	Username         string                    `json:"username,omitempty"`
	Window           string                    `json:"window"`
	TotalFreeplay    float64                   `json:"totalFreeplay"`
	TotalPlayedGame  float64                   `json:"totalPlayedGame"`
	TotalDeposit     float64                   `json:"totalDeposit"`
	TotalRedeem      float64                   `json:"totalRedeem"`
	NetCoin          float64                   `json:"netCoin"`
	Pending          []PendingRow              `json:"pending"`
	PendingCount     int                       `json:"pendingCount"`
	PendingTotal     float64                   `json:"pendingTotal"`
	TotalReduction   float64                   `json:"totalReduction"`
	TotalExtraMoney  float64                   `json:"totalExtraMoney"`
	DepositsByMethod map[PaymentMethod]float64 `json:"depositsByMethod"`
	TotalRevenue     float64                   `json:"totalRevenue"`
	EntryCount       int                       `json:"entryCount"`
}

// GameSummary is the per-game variant of SummaryReport for one month
type GameSummary struct {
	GameName        string  `json:"gameName"`
	TotalFreeplay   float64 `json:"totalFreeplay"`
	TotalPlayedGame float64 `json:"totalPlayedGame"`
	TotalDeposit    float64 `json:"totalDeposit"`
	TotalRedeem     float64 `json:"totalRedeem"`
	TotalCoins      float64 `json:"totalCoins"`
}
