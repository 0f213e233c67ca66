package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/internal/verification"
)

// Service provides business logic for the audit trail
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new audit service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Record appends one entry to the trail and returns it with its assigned id
// and tamper-evidence hash.
func (s *Service) Record(ctx context.Context, in NewEntry) (*Entry, error) {
	if in.EntityType == "" || in.Action == "" {
		return nil, fmt.Errorf("entity type and action are required")
	}

	entry := &Entry{
		RelatedEntityID: in.RelatedEntityID,
		EntityType:      in.EntityType,
		Action:          in.Action,
		PerformedBy:     in.PerformedBy,
		Timestamp:       s.now(),
		DetailsRef:      in.DetailsRef,
		IsReversible:    false,
	}
	entry.DataHash = ComputeDataHash(entry)

	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	s.logger.Debug("Audit entry recorded",
		zap.Int64("audit_id", entry.ID),
		zap.Int64("related_entity_id", entry.RelatedEntityID),
		zap.String("action", entry.Action))

	return entry, nil
}

// GetEntry returns an entry by id.
func (s *Service) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// EntryIDsForEntity lists the audit ids recorded against an entity.
func (s *Service) EntryIDsForEntity(ctx context.Context, entityID int64) ([]int64, error) {
	return s.repo.ListIDsByEntity(ctx, entityID)
}

// EntriesForEntity lists the full entries recorded against an entity.
func (s *Service) EntriesForEntity(ctx context.Context, entityID int64) ([]Entry, error) {
	return s.repo.ListByEntity(ctx, entityID)
}

// Recent lists the most recent entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.repo.ListRecent(ctx, limit)
}

// Verify recomputes an entry's hash against the stored digest.
func (s *Service) Verify(ctx context.Context, id int64) (bool, error) {
	entry, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return false, err
	}
	return ComputeDataHash(entry) == entry.DataHash, nil
}

// ComputeDataHash digests (relatedEntityId, action, performedBy, timestamp,
// detailsRef). Timestamps hash at second precision so the digest survives a
// round-trip through the database.
func ComputeDataHash(entry *Entry) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%d|%s",
		entry.RelatedEntityID, entry.Action, entry.PerformedBy,
		entry.Timestamp.Unix(), entry.DetailsRef)))
	return hex.EncodeToString(sum[:])
}

// CoreRecorder adapts the audit service to the recorder capability the
// verification core consumes.
type CoreRecorder struct {
	svc *Service
}

// RecorderFor returns a recorder bound to the given execution scope. The
// verification repository passes its transaction here so audit entries commit
// and roll back together with the operation they describe.
func (s *Service) RecorderFor(ext sqlx.ExtContext) verification.AuditRecorder {
	return &CoreRecorder{svc: &Service{
		repo:   s.repo.WithExt(ext),
		logger: s.logger,
		now:    s.now,
	}}
}

// Record implements verification.AuditRecorder.
func (r *CoreRecorder) Record(ctx context.Context, event verification.AuditEvent) error {
	_, err := r.svc.Record(ctx, NewEntry{
		RelatedEntityID: event.EntityID,
		EntityType:      event.EntityType,
		Action:          event.Action,
		PerformedBy:     event.PerformedBy,
		DetailsRef:      event.Details,
	})
	return err
}
