package verification

import (
	"context"
	"time"

	"github.com/lib/pq"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "PENDING"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusVerified   RequestStatus = "VERIFIED"
	StatusRejected   RequestStatus = "REJECTED"
	StatusDisputed   RequestStatus = "DISPUTED"
	StatusExpired    RequestStatus = "EXPIRED"
)

type VerificationType string

const (
	TypeIssueVerification    VerificationType = "ISSUE_VERIFICATION"
	TypeProjectMilestone     VerificationType = "PROJECT_MILESTONE"
	TypeBudgetExpenditure    VerificationType = "BUDGET_EXPENDITURE"
	TypeDocumentAuthenticity VerificationType = "DOCUMENT_AUTHENTICITY"
	TypeComplianceCheck      VerificationType = "COMPLIANCE_CHECK"
)

// VerificationRequest is a claim submitted for community confirmation against
// some external entity (an issue report, a project milestone, a transaction).
// IDs are dense, 1-based and never reused.
type VerificationRequest struct {
	ID                     int64            `json:"id" db:"id"`
	SubmitterCitizenID     int64            `json:"submitter_citizen_id" db:"submitter_citizen_id"`
	Submitter              string           `json:"submitter" db:"submitter"`
	Type                   VerificationType `json:"verification_type" db:"verification_type"`
	Status                 RequestStatus    `json:"status" db:"status"`
	Title                  string           `json:"title" db:"title"`
	DescriptionRef         string           `json:"description_ref" db:"description_ref"`
	EvidenceRef            string           `json:"evidence_ref" db:"evidence_ref"`
	RelatedEntityID        int64            `json:"related_entity_id" db:"related_entity_id"`
	SubmittedAt            time.Time        `json:"submitted_at" db:"submitted_at"`
	Deadline               time.Time        `json:"deadline" db:"deadline"`
	RequiredVerifications  int              `json:"required_verifications" db:"required_verifications"`
	CompletedVerifications int              `json:"completed_verifications" db:"completed_verifications"`
	ReputationReward       int64            `json:"reputation_reward" db:"reputation_reward"`
	Tags                   pq.StringArray   `json:"tags" db:"tags"`
}

// VerificationResponse is one verifier's vote on a request. The verifier's
// reputation is snapshotted at response time; later reputation changes never
// retroactively affect an already-submitted response.
type VerificationResponse struct {
	ID                 int64     `json:"id" db:"id"`
	RequestID          int64     `json:"request_id" db:"request_id"`
	ResponseIndex      int       `json:"response_index" db:"response_index"`
	VerifierCitizenID  int64     `json:"verifier_citizen_id" db:"verifier_citizen_id"`
	Verifier           string    `json:"verifier" db:"verifier"`
	IsApproved         bool      `json:"is_approved" db:"is_approved"`
	FindingsRef        string    `json:"findings_ref" db:"findings_ref"`
	EvidenceRef        string    `json:"evidence_ref" db:"evidence_ref"`
	RespondedAt        time.Time `json:"responded_at" db:"responded_at"`
	VerifierReputation int64     `json:"verifier_reputation_at_time" db:"verifier_reputation_at_time"`
	IsDisputed         bool      `json:"is_disputed" db:"is_disputed"`
}

// Policy holds the consensus and reward constants as runtime configuration so
// deployments (and tests) can run at different threshold values.
type Policy struct {
	DeadlineWindow         time.Duration `json:"deadline_window"`
	MinReputationToVerify  int64         `json:"minimum_reputation_to_verify"`
	BaseVerificationReward int64         `json:"base_verification_reward"`
	ApprovalThresholdPct   int           `json:"approval_threshold_pct"`
}

// DefaultPolicy returns the deployed defaults: a 3 day response window, a
// reputation floor of 100 to verify or dispute, a reward of 10 per valid
// verification and a 60% weighted approval threshold.
func DefaultPolicy() Policy {
	return Policy{
		DeadlineWindow:         72 * time.Hour,
		MinReputationToVerify:  100,
		BaseVerificationReward: 10,
		ApprovalThresholdPct:   60,
	}
}

// Citizen is the identity record resolved through the identity oracle.
type Citizen struct {
	ID              int64  `json:"citizen_id"`
	Wallet          string `json:"wallet"`
	ReputationScore int64  `json:"reputation_score"`
}

// IdentityOracle maps a wallet address to a citizen identity record.
// Read-only from the core's perspective.
type IdentityOracle interface {
	CitizenByWallet(ctx context.Context, wallet string) (*Citizen, error)
	IsRegistered(ctx context.Context, wallet string) (bool, error)
}

// ReputationLedger accepts reputation-increment events keyed by citizen id and
// an opaque evidence hash. Dedup of repeated credits is the ledger's own
// responsibility. Credits are best-effort from the core's perspective.
type ReputationLedger interface {
	CreditVerification(ctx context.Context, citizenID int64, evidenceHash string, amount int64) error
}

// AuditEvent is the core's view of one audit trail entry to record.
type AuditEvent struct {
	EntityID    int64
	EntityType  string
	Action      string
	PerformedBy string
	Details     string
}

// AuditRecorder mirrors every state transition into the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Publisher receives finalization, dispute and expiry observations. Delivery
// is fire-and-forget; publisher failures never affect core state.
type Publisher interface {
	PublishFinalization(requestID int64, status RequestStatus, completedVerifications int)
	PublishDispute(requestID int64, responseIndex int)
	PublishExpiry(requestID int64)
}

// SubmitRequestInput carries the caller-supplied fields of a new request.
type SubmitRequestInput struct {
	Wallet                string
	Type                  VerificationType
	Title                 string
	DescriptionRef        string
	EvidenceRef           string
	RelatedEntityID       int64
	RequiredVerifications int
	Tags                  []string
}

// CompleteVerificationInput carries one verifier response.
type CompleteVerificationInput struct {
	Wallet      string
	RequestID   int64
	IsApproved  bool
	FindingsRef string
	EvidenceRef string
}

// StatusCounts aggregates requests by status.
type StatusCounts map[RequestStatus]int
