package verification

import (
	"context"
	"fmt"
	"sort"
)

// In-memory collaborators for exercising the core state machine without a
// database. The fake repository mirrors the postgres transaction contract:
// InTx stages audit events and restores its state when fn fails, so rollback
// behavior is observable in tests.

type fakeRepo struct {
	requests       map[int64]*VerificationRequest
	responses      map[int64][]VerificationResponse
	responded      map[string]bool
	nextRequestID  int64
	nextResponseID int64

	recorder  *fakeRecorder
	updateErr error
}

func newFakeRepo(recorder *fakeRecorder) *fakeRepo {
	return &fakeRepo{
		requests:  make(map[int64]*VerificationRequest),
		responses: make(map[int64][]VerificationResponse),
		responded: make(map[string]bool),
		recorder:  recorder,
	}
}

func (r *fakeRepo) InTx(ctx context.Context, fn func(Repository, AuditRecorder) error) error {
	snapRequests := make(map[int64]*VerificationRequest, len(r.requests))
	for id, req := range r.requests {
		stored := *req
		snapRequests[id] = &stored
	}
	snapResponses := make(map[int64][]VerificationResponse, len(r.responses))
	for id, list := range r.responses {
		snapResponses[id] = append([]VerificationResponse(nil), list...)
	}
	snapResponded := make(map[string]bool, len(r.responded))
	for k, v := range r.responded {
		snapResponded[k] = v
	}
	snapRequestID, snapResponseID := r.nextRequestID, r.nextResponseID

	staged := &fakeRecorder{fail: r.recorder.fail}
	if err := fn(r, staged); err != nil {
		r.requests = snapRequests
		r.responses = snapResponses
		r.responded = snapResponded
		r.nextRequestID, r.nextResponseID = snapRequestID, snapResponseID
		return err
	}
	r.recorder.events = append(r.recorder.events, staged.events...)
	return nil
}

func (r *fakeRepo) CreateRequest(ctx context.Context, req *VerificationRequest) error {
	r.nextRequestID++
	req.ID = r.nextRequestID
	stored := *req
	r.requests[req.ID] = &stored
	return nil
}

func (r *fakeRepo) GetRequest(ctx context.Context, id int64) (*VerificationRequest, error) {
	stored, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	req := *stored
	return &req, nil
}

func (r *fakeRepo) UpdateRequest(ctx context.Context, req *VerificationRequest) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.requests[req.ID]; !ok {
		return ErrRequestNotFound
	}
	stored := *req
	r.requests[req.ID] = &stored
	return nil
}

func (r *fakeRepo) ListRequestsByCitizen(ctx context.Context, citizenID int64) ([]VerificationRequest, error) {
	var reqs []VerificationRequest
	for _, req := range r.requests {
		if req.SubmitterCitizenID == citizenID {
			reqs = append(reqs, *req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}

func (r *fakeRepo) ListOpenRequests(ctx context.Context) ([]VerificationRequest, error) {
	var reqs []VerificationRequest
	for _, req := range r.requests {
		if req.Status == StatusPending || req.Status == StatusInProgress {
			reqs = append(reqs, *req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs, nil
}

func (r *fakeRepo) CountByStatus(ctx context.Context) (StatusCounts, error) {
	counts := StatusCounts{}
	for _, req := range r.requests {
		counts[req.Status]++
	}
	return counts, nil
}

func (r *fakeRepo) CreateResponse(ctx context.Context, resp *VerificationResponse) error {
	r.nextResponseID++
	resp.ID = r.nextResponseID
	r.responses[resp.RequestID] = append(r.responses[resp.RequestID], *resp)
	return nil
}

func (r *fakeRepo) UpdateResponse(ctx context.Context, resp *VerificationResponse) error {
	list := r.responses[resp.RequestID]
	for i := range list {
		if list[i].ID == resp.ID {
			list[i] = *resp
			return nil
		}
	}
	return fmt.Errorf("response %d not found", resp.ID)
}

func (r *fakeRepo) ListResponses(ctx context.Context, requestID int64) ([]VerificationResponse, error) {
	return append([]VerificationResponse(nil), r.responses[requestID]...), nil
}

func (r *fakeRepo) HasResponded(ctx context.Context, requestID, citizenID int64) (bool, error) {
	return r.responded[fmt.Sprintf("%d:%d", requestID, citizenID)], nil
}

func (r *fakeRepo) MarkResponded(ctx context.Context, requestID, citizenID int64) error {
	r.responded[fmt.Sprintf("%d:%d", requestID, citizenID)] = true
	return nil
}

type fakeOracle struct {
	citizens map[string]*Citizen
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{citizens: make(map[string]*Citizen)}
}

func (o *fakeOracle) add(id int64, wallet string, reputation int64) {
	o.citizens[wallet] = &Citizen{ID: id, Wallet: wallet, ReputationScore: reputation}
}

func (o *fakeOracle) CitizenByWallet(ctx context.Context, wallet string) (*Citizen, error) {
	citizen, ok := o.citizens[wallet]
	if !ok {
		return nil, ErrNotRegistered
	}
	c := *citizen
	return &c, nil
}

func (o *fakeOracle) IsRegistered(ctx context.Context, wallet string) (bool, error) {
	_, ok := o.citizens[wallet]
	return ok, nil
}

type credit struct {
	citizenID    int64
	evidenceHash string
	amount       int64
}

type fakeLedger struct {
	credits []credit
	fail    error
}

func (l *fakeLedger) CreditVerification(ctx context.Context, citizenID int64, evidenceHash string, amount int64) error {
	if l.fail != nil {
		return l.fail
	}
	l.credits = append(l.credits, credit{citizenID, evidenceHash, amount})
	return nil
}

type fakeRecorder struct {
	events []AuditEvent
	fail   error
}

func (r *fakeRecorder) Record(ctx context.Context, event AuditEvent) error {
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, event)
	return nil
}

type finalization struct {
	requestID int64
	status    RequestStatus
	completed int
}

type fakePublisher struct {
	finalizations []finalization
	disputes      []int64
	expiries      []int64
}

func (p *fakePublisher) PublishFinalization(requestID int64, status RequestStatus, completedVerifications int) {
	p.finalizations = append(p.finalizations, finalization{requestID, status, completedVerifications})
}

func (p *fakePublisher) PublishDispute(requestID int64, responseIndex int) {
	p.disputes = append(p.disputes, requestID)
}

func (p *fakePublisher) PublishExpiry(requestID int64) {
	p.expiries = append(p.expiries, requestID)
}
