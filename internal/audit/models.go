package audit

import "time"

// Entry is one append-only audit trail record. Entries are never mutated or
// deleted once written.
type Entry struct {
	ID              int64     `json:"audit_id" db:"id"`
	RelatedEntityID int64     `json:"related_entity_id" db:"related_entity_id"`
	EntityType      string    `json:"entity_type" db:"entity_type"`
	Action          string    `json:"action" db:"action"`
	PerformedBy     string    `json:"performed_by" db:"performed_by"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	DetailsRef      string    `json:"details_ref" db:"details_ref"`
	// DataHash is a tamper-evidence digest over the entry's own fields, not a
	// commitment to prior state.
	DataHash     string `json:"data_hash" db:"data_hash"`
	IsReversible bool   `json:"is_reversible" db:"is_reversible"`
}

// NewEntry carries the caller-supplied fields of an entry to record.
type NewEntry struct {
	RelatedEntityID int64  `json:"related_entity_id"`
	EntityType      string `json:"entity_type"`
	Action          string `json:"action"`
	PerformedBy     string `json:"performed_by"`
	DetailsRef      string `json:"details_ref"`
}
