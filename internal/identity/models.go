package identity

import "time"

// Citizen is a wallet-address-bound identity record with a reputation score.
type Citizen struct {
	ID              int64     `json:"citizen_id" db:"id"`
	Wallet          string    `json:"wallet" db:"wallet"`
	NameRef         string    `json:"name_ref" db:"name_ref"`
	ReputationScore int64     `json:"reputation_score" db:"reputation_score"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	RegisteredAt    time.Time `json:"registered_at" db:"registered_at"`
}

// RegisterRequest is the payload for registering a new citizen.
type RegisterRequest struct {
	Wallet  string `json:"wallet" binding:"required"`
	NameRef string `json:"name_ref"`
}
