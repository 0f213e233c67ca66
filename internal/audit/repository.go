package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrEntryNotFound is returned when no audit entry exists for an id.
var ErrEntryNotFound = errors.New("audit entry not found")

// Repository defines data access for the audit trail. The trail is
// append-only: there is no update or delete.
type Repository interface {
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListIDsByEntity(ctx context.Context, entityID int64) ([]int64, error)
	ListByEntity(ctx context.Context, entityID int64) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)

	// WithExt rebinds the repository to another execution scope, typically a
	// transaction owned by a caller, so entries commit and roll back with it.
	WithExt(ext sqlx.ExtContext) Repository
}

type postgresRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewRepository creates a postgres-backed audit repository
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db, ext: db}
}

func (r *postgresRepository) WithExt(ext sqlx.ExtContext) Repository {
	return &postgresRepository{db: r.db, ext: ext}
}

func (r *postgresRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_entries (
			related_entity_id, entity_type, action, performed_by, timestamp,
			details_ref, data_hash, is_reversible
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING id`
	row := r.ext.QueryRowxContext(ctx, query,
		entry.RelatedEntityID, entry.EntityType, entry.Action, entry.PerformedBy,
		entry.Timestamp, entry.DetailsRef, entry.DataHash, entry.IsReversible,
	)
	return row.Scan(&entry.ID)
}

func (r *postgresRepository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	var entry Entry
	err := sqlx.GetContext(ctx, r.ext, &entry, "SELECT * FROM audit_entries WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *postgresRepository) ListIDsByEntity(ctx context.Context, entityID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.ext, &ids,
		"SELECT id FROM audit_entries WHERE related_entity_id = $1 ORDER BY id", entityID)
	return ids, err
}

func (r *postgresRepository) ListByEntity(ctx context.Context, entityID int64) ([]Entry, error) {
	var entries []Entry
	err := sqlx.SelectContext(ctx, r.ext, &entries,
		"SELECT * FROM audit_entries WHERE related_entity_id = $1 ORDER BY id", entityID)
	return entries, err
}

func (r *postgresRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	var entries []Entry
	err := sqlx.SelectContext(ctx, r.ext, &entries,
		"SELECT * FROM audit_entries ORDER BY id DESC LIMIT $1", limit)
	return entries, err
}
