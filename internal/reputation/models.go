package reputation

import "time"

// Event is one append-only reputation credit. Events are deduplicated on
// (citizen_id, evidence_hash): replaying a credit is a no-op.
type Event struct {
	ID           int64     `json:"id" db:"id"`
	CitizenID    int64     `json:"citizen_id" db:"citizen_id"`
	Amount       int64     `json:"amount" db:"amount"`
	EvidenceHash string    `json:"evidence_hash" db:"evidence_hash"`
	Source       string    `json:"source" db:"source"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Credit sources.
const (
	SourceVerification = "verification"
	SourceGovernance   = "governance"
)
