package reputation

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repository defines data access for reputation events.
type Repository interface {
	// CreateEvent appends an event unless one already exists for the same
	// (citizen_id, evidence_hash); it reports whether the event was inserted.
	CreateEvent(ctx context.Context, event *Event) (bool, error)
	ListByCitizen(ctx context.Context, citizenID int64) ([]Event, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres-backed reputation repository
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateEvent(ctx context.Context, event *Event) (bool, error) {
	query := `
		INSERT INTO reputation_events (citizen_id, amount, evidence_hash, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (citizen_id, evidence_hash) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		event.CitizenID, event.Amount, event.EvidenceHash, event.Source, event.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *postgresRepository) ListByCitizen(ctx context.Context, citizenID int64) ([]Event, error) {
	var events []Event
	err := r.db.SelectContext(ctx, &events,
		"SELECT * FROM reputation_events WHERE citizen_id = $1 ORDER BY id", citizenID)
	return events, err
}
