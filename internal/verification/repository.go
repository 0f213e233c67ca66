package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RecorderFactory binds an audit recorder to the repository's execution
// scope. InTx hands fn a recorder built from the open transaction so audit
// entries commit and roll back with the operation they describe.
type RecorderFactory func(ext sqlx.ExtContext) AuditRecorder

// Repository defines data access for requests, responses and the
// (request_id, citizen_id) dedup set.
type Repository interface {
	// InTx runs fn against a transactional view of the repository and an
	// audit recorder scoped to the same transaction. Any error from fn rolls
	// the whole transaction back, audit entries included.
	InTx(ctx context.Context, fn func(repo Repository, audit AuditRecorder) error) error

	CreateRequest(ctx context.Context, req *VerificationRequest) error
	GetRequest(ctx context.Context, id int64) (*VerificationRequest, error)
	UpdateRequest(ctx context.Context, req *VerificationRequest) error
	ListRequestsByCitizen(ctx context.Context, citizenID int64) ([]VerificationRequest, error)
	ListOpenRequests(ctx context.Context) ([]VerificationRequest, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)

	CreateResponse(ctx context.Context, resp *VerificationResponse) error
	UpdateResponse(ctx context.Context, resp *VerificationResponse) error
	ListResponses(ctx context.Context, requestID int64) ([]VerificationResponse, error)

	HasResponded(ctx context.Context, requestID, citizenID int64) (bool, error)
	MarkResponded(ctx context.Context, requestID, citizenID int64) error
}

type postgresRepository struct {
	db       *sqlx.DB
	ext      sqlx.ExtContext
	recorder RecorderFactory
}

// NewRepository creates a postgres-backed verification repository
func NewRepository(db *sqlx.DB, recorder RecorderFactory) Repository {
	return &postgresRepository{db: db, ext: db, recorder: recorder}
}

func (r *postgresRepository) InTx(ctx context.Context, fn func(Repository, AuditRecorder) error) error {
	if _, inTx := r.ext.(*sqlx.Tx); inTx {
		return fn(r, r.recorder(r.ext))
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txRepo := &postgresRepository{db: r.db, ext: tx, recorder: r.recorder}
	if err := fn(txRepo, r.recorder(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *postgresRepository) CreateRequest(ctx context.Context, req *VerificationRequest) error {
	query := `
		INSERT INTO verification_requests (
			submitter_citizen_id, submitter, verification_type, status, title,
			description_ref, evidence_ref, related_entity_id, submitted_at, deadline,
			required_verifications, completed_verifications, reputation_reward, tags
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING id`
	row := r.ext.QueryRowxContext(ctx, query,
		req.SubmitterCitizenID, req.Submitter, req.Type, req.Status, req.Title,
		req.DescriptionRef, req.EvidenceRef, req.RelatedEntityID, req.SubmittedAt, req.Deadline,
		req.RequiredVerifications, req.CompletedVerifications, req.ReputationReward, req.Tags,
	)
	return row.Scan(&req.ID)
}

func (r *postgresRepository) GetRequest(ctx context.Context, id int64) (*VerificationRequest, error) {
	var req VerificationRequest
	err := sqlx.GetContext(ctx, r.ext, &req, "SELECT * FROM verification_requests WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *postgresRepository) UpdateRequest(ctx context.Context, req *VerificationRequest) error {
	query := `
		UPDATE verification_requests SET
			status = :status,
			completed_verifications = :completed_verifications,
			deadline = :deadline,
			tags = :tags
		WHERE id = :id`
	_, err := sqlx.NamedExecContext(ctx, r.ext, query, req)
	return err
}

func (r *postgresRepository) ListRequestsByCitizen(ctx context.Context, citizenID int64) ([]VerificationRequest, error) {
	var reqs []VerificationRequest
	err := sqlx.SelectContext(ctx, r.ext, &reqs,
		"SELECT * FROM verification_requests WHERE submitter_citizen_id = $1 ORDER BY id", citizenID)
	return reqs, err
}

func (r *postgresRepository) ListOpenRequests(ctx context.Context) ([]VerificationRequest, error) {
	var reqs []VerificationRequest
	err := sqlx.SelectContext(ctx, r.ext, &reqs,
		"SELECT * FROM verification_requests WHERE status IN ($1, $2) ORDER BY id",
		StatusPending, StatusInProgress)
	return reqs, err
}

func (r *postgresRepository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	rows, err := r.ext.QueryxContext(ctx,
		"SELECT status, COUNT(*) AS n FROM verification_requests GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var status RequestStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *postgresRepository) CreateResponse(ctx context.Context, resp *VerificationResponse) error {
	query := `
		INSERT INTO verification_responses (
			request_id, response_index, verifier_citizen_id, verifier, is_approved,
			findings_ref, evidence_ref, responded_at, verifier_reputation_at_time, is_disputed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING id`
	row := r.ext.QueryRowxContext(ctx, query,
		resp.RequestID, resp.ResponseIndex, resp.VerifierCitizenID, resp.Verifier, resp.IsApproved,
		resp.FindingsRef, resp.EvidenceRef, resp.RespondedAt, resp.VerifierReputation, resp.IsDisputed,
	)
	return row.Scan(&resp.ID)
}

func (r *postgresRepository) UpdateResponse(ctx context.Context, resp *VerificationResponse) error {
	query := "UPDATE verification_responses SET is_disputed = :is_disputed WHERE id = :id"
	_, err := sqlx.NamedExecContext(ctx, r.ext, query, resp)
	return err
}

func (r *postgresRepository) ListResponses(ctx context.Context, requestID int64) ([]VerificationResponse, error) {
	var resps []VerificationResponse
	err := sqlx.SelectContext(ctx, r.ext, &resps,
		"SELECT * FROM verification_responses WHERE request_id = $1 ORDER BY response_index", requestID)
	return resps, err
}

func (r *postgresRepository) HasResponded(ctx context.Context, requestID, citizenID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.ext, &exists,
		"SELECT EXISTS (SELECT 1 FROM verification_responders WHERE request_id = $1 AND citizen_id = $2)",
		requestID, citizenID)
	return exists, err
}

func (r *postgresRepository) MarkResponded(ctx context.Context, requestID, citizenID int64) error {
	_, err := r.ext.ExecContext(ctx,
		"INSERT INTO verification_responders (request_id, citizen_id) VALUES ($1, $2)",
		requestID, citizenID)
	return err
}
