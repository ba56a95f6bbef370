package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant roles
const (
	RoleMember  = "member"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// Ledger currencies
const (
	CurrencyCoins   = "COIN"
	CurrencyCredits = "USD"
)

// Participant represents a funnel user
type Participant struct {
	Id         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	Role       string    `db:"role" json:"role"`
	ReferredBy string    `db:"referred_by" json:"referred_by,omitempty"`
	OptedOut   bool      `db:"opted_out" json:"opted_out"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FirstName returns the first word of the participant's name
func (p Participant) FirstName() string {
	for i, c := range p.Name {
		if c == ' ' {
			return p.Name[:i]
		}
	}
	return p.Name
}

// CoinBalance represents current balance state (hot data)
type CoinBalance struct {
	Id                string          `db:"id"`
	ParticipantId     string          `db:"participant_id"`
	Currency          string          `db:"currency"`
	Balance           decimal.Decimal `db:"balance"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// CoinTransaction represents immutable coin/credit history (cold data)
type CoinTransaction struct {
	Id            string          `db:"id"`
	ParticipantId string          `db:"participant_id"`
	Currency      string          `db:"currency"`
	Kind          string          `db:"kind"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	ExternalRef   string          `db:"external_ref"`
	Reason        string          `db:"reason"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}
