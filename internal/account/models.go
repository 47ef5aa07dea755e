package account

import "time"

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Account is the per-user record. Accounts are created on first interaction
// and never deleted; an admin reset returns one to the free starter state.
type Account struct {
	UserID           string    `json:"user_id"`
	Tier             Tier      `json:"tier"`
	QuotaRemaining   int       `json:"quota_remaining"`
	TargetSlots      int       `json:"target_slots"`
	SelectedCategory string    `json:"selected_category,omitempty"`
	SelectedMode     string    `json:"selected_mode,omitempty"`
	CustomTargetPath string    `json:"custom_target_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (a *Account) IsPremium() bool {
	return a.Tier == TierPremium
}

// Reservation is the short-lived per-user lock handed out by
// CheckAndReserve. Exactly one commit must follow each reservation.
type Reservation struct {
	ID       string
	UserID   string
	IssuedAt time.Time
}
