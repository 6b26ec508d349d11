package services

import (
	"math"

	"github.com/coinledger/backend/internal/models"
)

// CoinEffect returns the signed contribution of one entry to its game's coin balance.
// Coins leave the game on deposits, freeplay and played games, and come back on redeems.
func CoinEffect(kind models.EntryKind, amountFinal float64) float64 {
	if math.IsNaN(amountFinal) || math.IsInf(amountFinal, 0) || amountFinal <= 0 {
		return 0
	}

	switch kind {
	case models.KindRedeem:
		return amountFinal
	case models.KindDeposit, models.KindFreeplay, models.KindPlayedGame:
		return -amountFinal
	}
	return 0
}
