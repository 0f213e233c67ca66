package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/pkg/workflows"
)

// Entity types used when tagging audit trail entries.
const (
	EntityTypeVerificationRequest = "verification_request"
)

// WeightTier maps a reputation floor to a discrete vote weight.
type WeightTier struct {
	MinReputation int64 `json:"min_reputation"`
	Weight        int   `json:"weight"`
}

// DefaultWeightTiers returns the deployed vote weighting: 5 at 1000+,
// 3 at 500+, 2 at 200+, 1 otherwise. Tiers must be ordered by descending
// reputation floor.
func DefaultWeightTiers() []WeightTier {
	return []WeightTier{
		{MinReputation: 1000, Weight: 5},
		{MinReputation: 500, Weight: 3},
		{MinReputation: 200, Weight: 2},
		{MinReputation: 0, Weight: 1},
	}
}

// Service implements the verification request store, response ledger,
// weighted consensus finalizer and dispute handling.
//
// Every state-changing operation runs inside a single repository transaction
// and under the service mutex, mirroring the serialized one-call-at-a-time
// execution model of the on-chain original: no interleaving, no partial
// visibility of in-progress mutations.
type Service struct {
	repo   Repository
	oracle IdentityOracle
	ledger ReputationLedger
	events Publisher
	sm     *workflows.StateMachine
	logger *zap.Logger

	mu     sync.Mutex
	policy Policy
	tiers  []WeightTier
	now    func() time.Time
}

// NewService creates the verification service with default policy. Audit
// recording is wired through the repository so entries share the operation's
// transaction.
func NewService(repo Repository, oracle IdentityOracle, ledger ReputationLedger, events Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		oracle: oracle,
		ledger: ledger,
		events: events,
		sm:     workflows.NewStateMachine(),
		logger: logger,
		policy: DefaultPolicy(),
		tiers:  DefaultWeightTiers(),
		now:    time.Now,
	}
}

// =====================================================
// Request Store
// =====================================================

// SubmitRequest creates a new verification request in PENDING state and
// returns its id. Ids are dense, monotonic and never reused.
func (s *Service) SubmitRequest(ctx context.Context, in SubmitRequestInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	citizen, err := s.oracle.CitizenByWallet(ctx, in.Wallet)
	if err != nil {
		return 0, err
	}

	if in.Title == "" || len(in.DescriptionRef) <= 10 {
		return 0, fmt.Errorf("%w: title required and description must exceed 10 characters", ErrInvalidInput)
	}
	if in.RequiredVerifications < 1 || in.RequiredVerifications > 10 {
		return 0, fmt.Errorf("%w: required verifications must be between 1 and 10", ErrInvalidInput)
	}
	if !validType(in.Type) {
		return 0, fmt.Errorf("%w: unknown verification type %q", ErrInvalidInput, in.Type)
	}

	now := s.now()
	req := &VerificationRequest{
		SubmitterCitizenID:    citizen.ID,
		Submitter:             citizen.Wallet,
		Type:                  in.Type,
		Status:                StatusPending,
		Title:                 in.Title,
		DescriptionRef:        in.DescriptionRef,
		EvidenceRef:           in.EvidenceRef,
		RelatedEntityID:       in.RelatedEntityID,
		SubmittedAt:           now,
		Deadline:              now.Add(s.policy.DeadlineWindow),
		RequiredVerifications: in.RequiredVerifications,
		// Reward is copied from the policy at creation time; later policy
		// changes never affect existing requests.
		ReputationReward: s.policy.BaseVerificationReward,
		Tags:             in.Tags,
	}

	err = s.repo.InTx(ctx, func(repo Repository, audit AuditRecorder) error {
		if err := repo.CreateRequest(ctx, req); err != nil {
			return err
		}
		return audit.Record(ctx, AuditEvent{
			EntityID:    req.ID,
			EntityType:  EntityTypeVerificationRequest,
			Action:      "Verification requested",
			PerformedBy: citizen.Wallet,
			Details:     req.DescriptionRef,
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Verification request submitted",
		zap.Int64("request_id", req.ID),
		zap.String("type", string(req.Type)),
		zap.Int64("submitter_citizen_id", citizen.ID))

	return req.ID, nil
}

// =====================================================
// Response Ledger
// =====================================================

// CompleteVerification records one verifier response. When the response count
// reaches the request's required verifications, finalization runs within the
// same transaction. The reputation credit for the verifier is issued after
// commit and is best-effort: its failure is logged and swallowed.
func (s *Service) CompleteVerification(ctx context.Context, in CompleteVerificationInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		verifier   *Citizen
		finalized  bool
		finalState RequestStatus
		completed  int
		reward     int64
	)

	err := s.repo.InTx(ctx, func(repo Repository, audit AuditRecorder) error {
		req, err := repo.GetRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending && req.Status != StatusInProgress {
			return fmt.Errorf("%w: status %s", ErrRequestClosed, req.Status)
		}
		now := s.now()
		if now.After(req.Deadline) {
			return ErrDeadlinePassed
		}

		verifier, err = s.oracle.CitizenByWallet(ctx, in.Wallet)
		if err != nil {
			return err
		}
		if verifier.ReputationScore < s.policy.MinReputationToVerify {
			return fmt.Errorf("%w: have %d, need %d",
				ErrInsufficientReputation, verifier.ReputationScore, s.policy.MinReputationToVerify)
		}
		if verifier.ID == req.SubmitterCitizenID {
			return ErrSelfVerification
		}
		responded, err := repo.HasResponded(ctx, req.ID, verifier.ID)
		if err != nil {
			return err
		}
		if responded {
			return ErrResponseAlreadySubmitted
		}

		resp := &VerificationResponse{
			RequestID:          req.ID,
			ResponseIndex:      req.CompletedVerifications,
			VerifierCitizenID:  verifier.ID,
			Verifier:           verifier.Wallet,
			IsApproved:         in.IsApproved,
			FindingsRef:        in.FindingsRef,
			EvidenceRef:        in.EvidenceRef,
			RespondedAt:        now,
			VerifierReputation: verifier.ReputationScore,
		}
		if err := repo.CreateResponse(ctx, resp); err != nil {
			return err
		}
		if err := repo.MarkResponded(ctx, req.ID, verifier.ID); err != nil {
			return err
		}

		req.CompletedVerifications++
		if req.Status == StatusPending {
			req.Status = StatusInProgress
		}

		if req.CompletedVerifications >= req.RequiredVerifications {
			finalState, err = s.finalize(ctx, repo, audit, req)
			if err != nil {
				return err
			}
			finalized = true
			completed = req.CompletedVerifications
		}

		reward = req.ReputationReward
		return repo.UpdateRequest(ctx, req)
	})
	if err != nil {
		return err
	}

	if creditErr := s.ledger.CreditVerification(ctx, verifier.ID, verificationEvidenceHash(in.RequestID), reward); creditErr != nil {
		s.logger.Warn("Reputation credit failed, continuing",
			zap.Int64("request_id", in.RequestID),
			zap.Int64("citizen_id", verifier.ID),
			zap.Error(creditErr))
	}

	if finalized {
		s.events.PublishFinalization(in.RequestID, finalState, completed)
		s.logger.Info("Verification request finalized",
			zap.Int64("request_id", in.RequestID),
			zap.String("final_status", string(finalState)),
			zap.Int("completed_verifications", completed))
	}

	return nil
}

// =====================================================
// Weighted Consensus Finalizer
// =====================================================

// finalize computes the reputation-weighted outcome of a request. Disputed
// responses carry no weight. With zero total weight the request is REJECTED;
// otherwise it is VERIFIED when floor(approvedWeight*100/totalWeight) meets
// the approval threshold. Finalization is one-way: the request never re-enters
// IN_PROGRESS, and new disputes do not re-trigger it.
func (s *Service) finalize(ctx context.Context, repo Repository, audit AuditRecorder, req *VerificationRequest) (RequestStatus, error) {
	responses, err := repo.ListResponses(ctx, req.ID)
	if err != nil {
		return "", err
	}

	var totalWeight, approvedWeight, approvals int
	for _, resp := range responses {
		if resp.IsDisputed {
			continue
		}
		w := s.weightFor(resp.VerifierReputation)
		totalWeight += w
		if resp.IsApproved {
			approvedWeight += w
			approvals++
		}
	}

	final := StatusRejected
	if totalWeight > 0 {
		approvalPercentage := approvedWeight * 100 / totalWeight
		if approvalPercentage >= s.policy.ApprovalThresholdPct {
			final = StatusVerified
		}
	}

	if !s.sm.CanTransition(string(req.Status), string(final)) {
		return "", fmt.Errorf("illegal transition %s -> %s for request %d", req.Status, final, req.ID)
	}
	req.Status = final

	err = audit.Record(ctx, AuditEvent{
		EntityID:    req.ID,
		EntityType:  EntityTypeVerificationRequest,
		Action:      "Verification finalized",
		PerformedBy: "consensus",
		Details:     fmt.Sprintf("final status %s with %d approving responses", final, approvals),
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

func (s *Service) weightFor(reputation int64) int {
	for _, tier := range s.tiers {
		if reputation >= tier.MinReputation {
			return tier.Weight
		}
	}
	return 1
}

// =====================================================
// Dispute Handler
// =====================================================

// DisputeResponse marks one response as disputed and forces the parent
// request into DISPUTED, even when the request was already finalized. This is
// a deliberate escalation path; only ForceResolveDispute closes it again.
func (s *Service) DisputeResponse(ctx context.Context, wallet string, requestID int64, responseIndex int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.InTx(ctx, func(repo Repository, audit AuditRecorder) error {
		req, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		responses, err := repo.ListResponses(ctx, requestID)
		if err != nil {
			return err
		}
		if responseIndex < 0 || responseIndex >= len(responses) {
			return fmt.Errorf("%w: response index %d out of range", ErrInvalidInput, responseIndex)
		}
		if len(reason) <= 10 {
			return fmt.Errorf("%w: dispute reason must exceed 10 characters", ErrInvalidInput)
		}

		resp := responses[responseIndex]
		if resp.IsDisputed {
			return ErrAlreadyDisputed
		}

		disputer, err := s.oracle.CitizenByWallet(ctx, wallet)
		if err != nil {
			return err
		}
		if disputer.ID == resp.VerifierCitizenID {
			return ErrSelfDispute
		}
		if disputer.ReputationScore < s.policy.MinReputationToVerify {
			return fmt.Errorf("%w: have %d, need %d",
				ErrInsufficientReputation, disputer.ReputationScore, s.policy.MinReputationToVerify)
		}

		resp.IsDisputed = true
		if err := repo.UpdateResponse(ctx, &resp); err != nil {
			return err
		}

		if req.Status != StatusDisputed {
			if !s.sm.CanTransition(string(req.Status), string(StatusDisputed)) {
				return fmt.Errorf("%w: status %s", ErrRequestClosed, req.Status)
			}
			req.Status = StatusDisputed
			if err := repo.UpdateRequest(ctx, req); err != nil {
				return err
			}
		}

		return audit.Record(ctx, AuditEvent{
			EntityID:    req.ID,
			EntityType:  EntityTypeVerificationRequest,
			Action:      "Verification disputed",
			PerformedBy: disputer.Wallet,
			Details:     reason,
		})
	})
	if err != nil {
		return err
	}

	s.events.PublishDispute(requestID, responseIndex)
	s.logger.Info("Verification response disputed",
		zap.Int64("request_id", requestID),
		zap.Int("response_index", responseIndex))
	return nil
}

// ForceResolveDispute closes a DISPUTED request with a governance decision.
// Role enforcement happens at the transport layer; resolvedBy identifies the
// operator for the audit trail.
func (s *Service) ForceResolveDispute(ctx context.Context, resolvedBy string, requestID int64, finalStatus RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.InTx(ctx, func(repo Repository, audit AuditRecorder) error {
		req, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusDisputed {
			return fmt.Errorf("%w: status %s", ErrNotDisputed, req.Status)
		}
		if finalStatus != StatusVerified && finalStatus != StatusRejected {
			return fmt.Errorf("%w: got %s", ErrInvalidFinalStatus, finalStatus)
		}

		req.Status = finalStatus
		if err := repo.UpdateRequest(ctx, req); err != nil {
			return err
		}

		return audit.Record(ctx, AuditEvent{
			EntityID:    req.ID,
			EntityType:  EntityTypeVerificationRequest,
			Action:      "Dispute resolved",
			PerformedBy: resolvedBy,
			Details:     fmt.Sprintf("resolved to %s by governance", finalStatus),
		})
	})
}

// =====================================================
// Expiry
// =====================================================

// SweepExpired transitions overdue PENDING and IN_PROGRESS requests to
// EXPIRED and returns how many were swept. The deadline is still checked
// lazily on every response, so running the sweep is optional deployment
// surface rather than a correctness requirement.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []int64
	err := s.repo.InTx(ctx, func(repo Repository, audit AuditRecorder) error {
		open, err := repo.ListOpenRequests(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		for i := range open {
			req := &open[i]
			if !now.After(req.Deadline) {
				continue
			}
			req.Status = StatusExpired
			if err := repo.UpdateRequest(ctx, req); err != nil {
				return err
			}
			err = audit.Record(ctx, AuditEvent{
				EntityID:    req.ID,
				EntityType:  EntityTypeVerificationRequest,
				Action:      "Verification expired",
				PerformedBy: "system",
				Details:     fmt.Sprintf("deadline %s passed with %d of %d verifications", req.Deadline.UTC().Format(time.RFC3339), req.CompletedVerifications, req.RequiredVerifications),
			})
			if err != nil {
				return err
			}
			swept = append(swept, req.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range swept {
		s.events.PublishExpiry(id)
	}
	if len(swept) > 0 {
		s.logger.Info("Expired verification requests swept", zap.Int("count", len(swept)))
	}
	return len(swept), nil
}

// =====================================================
// Queries
// =====================================================

// GetRequest returns a request by id.
func (s *Service) GetRequest(ctx context.Context, id int64) (*VerificationRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// Responses returns the ordered response list of a request.
func (s *Service) Responses(ctx context.Context, requestID int64) ([]VerificationResponse, error) {
	if _, err := s.repo.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListResponses(ctx, requestID)
}

// RequestsByCitizen lists all requests submitted by a citizen.
func (s *Service) RequestsByCitizen(ctx context.Context, citizenID int64) ([]VerificationRequest, error) {
	return s.repo.ListRequestsByCitizen(ctx, citizenID)
}

// PendingRequestIDs lists open requests whose deadline has not passed.
func (s *Service) PendingRequestIDs(ctx context.Context) ([]int64, error) {
	open, err := s.repo.ListOpenRequests(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ids := make([]int64, 0, len(open))
	for _, req := range open {
		if now.After(req.Deadline) {
			continue
		}
		ids = append(ids, req.ID)
	}
	return ids, nil
}

// Stats aggregates request counts by status.
func (s *Service) Stats(ctx context.Context) (StatusCounts, error) {
	return s.repo.CountByStatus(ctx)
}

// =====================================================
// Policy
// =====================================================

// Policy returns the active policy.
func (s *Service) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetPolicy replaces the active policy. New values apply to future requests
// only; deadlines and rewards already copied onto requests are unchanged.
func (s *Service) SetPolicy(p Policy) error {
	if p.DeadlineWindow <= 0 {
		return fmt.Errorf("%w: deadline window must be positive", ErrInvalidInput)
	}
	if p.MinReputationToVerify < 0 || p.BaseVerificationReward < 0 {
		return fmt.Errorf("%w: reputation floor and reward must be non-negative", ErrInvalidInput)
	}
	if p.ApprovalThresholdPct < 1 || p.ApprovalThresholdPct > 100 {
		return fmt.Errorf("%w: approval threshold must be between 1 and 100", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	return nil
}

// SetWeightTiers replaces the vote weighting table. Tiers must be ordered by
// descending reputation floor and end with a floor of zero.
func (s *Service) SetWeightTiers(tiers []WeightTier) error {
	if len(tiers) == 0 || tiers[len(tiers)-1].MinReputation != 0 {
		return fmt.Errorf("%w: tiers must end with a zero reputation floor", ErrInvalidInput)
	}
	for i, tier := range tiers {
		if tier.Weight < 1 {
			return fmt.Errorf("%w: tier weights must be positive", ErrInvalidInput)
		}
		if i > 0 && tier.MinReputation >= tiers[i-1].MinReputation {
			return fmt.Errorf("%w: tiers must be ordered by descending reputation floor", ErrInvalidInput)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = tiers
	return nil
}

func validType(t VerificationType) bool {
	switch t {
	case TypeIssueVerification, TypeProjectMilestone, TypeBudgetExpenditure,
		TypeDocumentAuthenticity, TypeComplianceCheck:
		return true
	}
	return false
}

// verificationEvidenceHash derives the opaque idempotency key the reputation
// ledger receives for a credited verification.
func verificationEvidenceHash(requestID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("verification:%d", requestID)))
	return hex.EncodeToString(sum[:])
}
