package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an operator account allowed to record ledger entries
type User struct {
	ID           int64     `json:"id" example:"1"`
	Username     string    `json:"username" example:"cashier01"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role" example:"user"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the principal may act on other users' entries
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
