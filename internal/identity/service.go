package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/internal/verification"
)

// BaseReputation is the score every citizen starts with.
const BaseReputation = 100

// Service provides business logic for the citizen registry
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new identity service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register creates a new citizen record for a wallet. Wallets are normalized
// to lowercase; a wallet registers at most once.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Citizen, error) {
	wallet := NormalizeWallet(req.Wallet)
	if wallet == "" {
		return nil, fmt.Errorf("wallet address is required")
	}

	citizen := &Citizen{
		Wallet:          wallet,
		NameRef:         req.NameRef,
		ReputationScore: BaseReputation,
		IsActive:        true,
		RegisteredAt:    time.Now(),
	}
	if err := s.repo.CreateCitizen(ctx, citizen); err != nil {
		return nil, err
	}

	s.logger.Info("Citizen registered",
		zap.Int64("citizen_id", citizen.ID),
		zap.String("wallet", citizen.Wallet))
	return citizen, nil
}

// GetByWallet returns the citizen bound to a wallet.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (*Citizen, error) {
	return s.repo.GetByWallet(ctx, NormalizeWallet(wallet))
}

// GetByID returns a citizen by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Citizen, error) {
	return s.repo.GetByID(ctx, id)
}

// AdjustReputation applies a signed delta to a citizen's score and returns the
// new score.
func (s *Service) AdjustReputation(ctx context.Context, id int64, delta int64) (int64, error) {
	score, err := s.repo.AdjustReputation(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Citizen reputation adjusted",
		zap.Int64("citizen_id", id),
		zap.Int64("delta", delta),
		zap.Int64("score", score))
	return score, nil
}

// Deactivate removes a citizen from active lookups without deleting history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// NormalizeWallet lowercases and trims a wallet address.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// Oracle adapts the registry to the identity-oracle capability the
// verification core consumes. Inactive citizens resolve as not registered.
type Oracle struct {
	svc *Service
}

// NewOracle wraps an identity service for the verification core.
func NewOracle(svc *Service) *Oracle {
	return &Oracle{svc: svc}
}

// CitizenByWallet implements verification.IdentityOracle.
func (o *Oracle) CitizenByWallet(ctx context.Context, wallet string) (*verification.Citizen, error) {
	citizen, err := o.svc.GetByWallet(ctx, wallet)
	if errors.Is(err, ErrCitizenNotFound) {
		return nil, verification.ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	if !citizen.IsActive {
		return nil, verification.ErrNotRegistered
	}
	return &verification.Citizen{
		ID:              citizen.ID,
		Wallet:          citizen.Wallet,
		ReputationScore: citizen.ReputationScore,
	}, nil
}

// IsRegistered implements verification.IdentityOracle.
func (o *Oracle) IsRegistered(ctx context.Context, wallet string) (bool, error) {
	_, err := o.CitizenByWallet(ctx, wallet)
	if errors.Is(err, verification.ErrNotRegistered) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
