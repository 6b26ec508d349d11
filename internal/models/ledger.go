package models

import (
	"slices"
	"time"
)

// EntryKind is the type of a ledger transaction
type EntryKind string

const (
	KindFreeplay   EntryKind = "freeplay"
	KindDeposit    EntryKind = "deposit"
	KindRedeem     EntryKind = "redeem"
	KindPlayedGame EntryKind = "played-game"
)

// AllKinds lists every accepted entry kind
var AllKinds = []EntryKind{KindFreeplay, KindDeposit, KindRedeem, KindPlayedGame}

// Valid reports whether k is one of the accepted kinds
func (k EntryKind) Valid() bool {
	return slices.Contains(AllKinds, k)
}

// IsCash reports whether entries of this kind move real money and so carry a payment method
func (k EntryKind) IsCash() bool {
	return k == KindDeposit || k == KindRedeem
}

// PaymentMethod is the cash channel of a deposit or redeem
type PaymentMethod string

const (
	MethodCashApp PaymentMethod = "cashapp"
	MethodPayPal  PaymentMethod = "paypal"
	MethodChime   PaymentMethod = "chime"
	MethodVenmo   PaymentMethod = "venmo"
)

// AllMethods lists every accepted payment method
var AllMethods = []PaymentMethod{MethodCashApp, MethodPayPal, MethodChime, MethodVenmo}

// LedgerEntry is one recorded coin transaction
type LedgerEntry struct {
	ID           int64         `json:"id" db:"id"`
	Username     string        `json:"username" db:"username" validate:"required"`
	CreatedBy    string        `json:"createdBy" db:"created_by" validate:"required"`
	Kind         EntryKind     `json:"kind" db:"kind" validate:"required,oneof=freeplay deposit redeem played-game"`
	Method       PaymentMethod `json:"method,omitempty" db:"method" validate:"omitempty,oneof=cashapp paypal chime venmo"`
	PlayerName   string        `json:"playerName" db:"player_name" validate:"max=200"`
	PlayerTag    string        `json:"playerTag" db:"player_tag" validate:"max=200"`
	GameName     string        `json:"gameName" db:"game_name" validate:"required,max=200"`
	AmountBase   float64       `json:"amountBase" db:"amount_base" validate:"gte=0"`
	Amount       float64       `json:"amount" db:"amount" validate:"gte=0"`
	BonusRate    float64       `json:"bonusRate" db:"bonus_rate" validate:"gte=0"`
	BonusAmount  float64       `json:"bonusAmount" db:"bonus_amount" validate:"gte=0"`
	AmountFinal  float64       `json:"amountFinal" db:"amount_final" validate:"gte=0"`
	Note         string        `json:"note" db:"note" validate:"max=1000"`
	Date         string        `json:"date" db:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	TotalPaid    float64       `json:"totalPaid" db:"total_paid" validate:"gte=0"`
	TotalCashout float64       `json:"totalCashout" db:"total_cashout" validate:"gte=0"`
	RemainingPay float64       `json:"remainingPay" db:"remaining_pay" validate:"gte=0"`
	IsPending    bool          `json:"isPending" db:"is_pending"`
	ExtraMoney   float64       `json:"extraMoney" db:"extra_money" validate:"gte=0"`
	Reduction    float64       `json:"reduction" db:"reduction" validate:"gte=0"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt" db:"updated_at"`
}

// EntryFilter narrows a ledger listing. Zero values mean "no constraint".
type EntryFilter struct {
	Username  string
	Kinds     []EntryKind
	GameName  string
	PlayerTag *string
	// CreatedFrom is inclusive, CreatedTo exclusive
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// DatePrefix matches the start of the entry's calendar day ("2024", "2024-05", "2024-05-17")
	DatePrefix string
	Limit      int
}
