package reputation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScoreApplier applies a reputation delta to a citizen's score. Satisfied by
// the identity service.
type ScoreApplier interface {
	AdjustReputation(ctx context.Context, citizenID int64, delta int64) (int64, error)
}

// Service is the reputation ledger: an append-only event log that applies
// credits to citizen scores. It implements the reputation-ledger capability
// the verification core consumes.
type Service struct {
	repo   Repository
	scores ScoreApplier
	logger *zap.Logger
}

// NewService creates a new reputation service
func NewService(repo Repository, scores ScoreApplier, logger *zap.Logger) *Service {
	return &Service{repo: repo, scores: scores, logger: logger}
}

// CreditVerification credits a citizen for a valid verification. Credits are
// idempotent on the evidence hash: a replay records nothing and applies
// nothing.
func (s *Service) CreditVerification(ctx context.Context, citizenID int64, evidenceHash string, amount int64) error {
	inserted, err := s.repo.CreateEvent(ctx, &Event{
		CitizenID:    citizenID,
		Amount:       amount,
		EvidenceHash: evidenceHash,
		Source:       SourceVerification,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.Debug("Duplicate reputation credit ignored",
			zap.Int64("citizen_id", citizenID),
			zap.String("evidence_hash", evidenceHash))
		return nil
	}

	if _, err := s.scores.AdjustReputation(ctx, citizenID, amount); err != nil {
		return err
	}
	return nil
}

// History lists a citizen's reputation events.
func (s *Service) History(ctx context.Context, citizenID int64) ([]Event, error) {
	return s.repo.ListByCitizen(ctx, citizenID)
}
