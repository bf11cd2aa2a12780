package models

import "time"

// Subscription is the per-user credit ledger. CreditsUsed only ever grows and
// is mutated exclusively through an atomic server-side increment.
type Subscription struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Plan         string    `json:"plan" db:"plan"`
	CreditsLimit int       `json:"credits_limit" db:"credits_limit"`
	CreditsUsed  int       `json:"credits_used" db:"credits_used"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining returns the credits still available on the subscription.
func (s *Subscription) Remaining() int {
	return s.CreditsLimit - s.CreditsUsed
}

// CreditUsage is one audit row written for every accounting call that moves
// credits.
type CreditUsage struct {
	ID             string    `json:"id" db:"id"`
	SubscriptionID *string   `json:"subscription_id" db:"subscription_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Amount         int       `json:"amount" db:"amount"`
	LeadID         *int64    `json:"lead_id" db:"lead_id"`
	Description    string    `json:"description" db:"description"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
