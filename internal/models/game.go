package models

import "time"

// GameBalance holds the materialized coin total of one game.
// TotalCoins is only ever changed by applying deltas.
type GameBalance struct {
	ID               int64      `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	CoinsRecharged   float64    `json:"coinsRecharged" db:"coins_recharged"`
	LastRechargeDate *time.Time `json:"lastRechargeDate,omitempty" db:"last_recharge_date"`
	TotalCoins       float64    `json:"totalCoins" db:"total_coins"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}
