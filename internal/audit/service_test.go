package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citiproof/civic-portal/civic-portal-backend/internal/verification"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) WithExt(ext sqlx.ExtContext) Repository {
	return m
}

func (m *mockRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	if args.Error(0) == nil {
		entry.ID = 1
	}
	return args.Error(0)
}

func (m *mockRepository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *mockRepository) ListIDsByEntity(ctx context.Context, entityID int64) ([]int64, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockRepository) ListByEntity(ctx context.Context, entityID int64) ([]Entry, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Entry), args.Error(1)
}

func (m *mockRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Entry), args.Error(1)
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestRecordComputesHashAndPersists(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)

	repo.On("CreateEntry", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

	entry, err := svc.Record(context.Background(), NewEntry{
		RelatedEntityID: 42,
		EntityType:      "verification_request",
		Action:          "Verification requested",
		PerformedBy:     "0xaaaa000000000000000000000000000000000001",
		DetailsRef:      "QmDetails",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, int64(42), entry.RelatedEntityID)
	assert.False(t, entry.IsReversible)
	assert.Equal(t, ComputeDataHash(entry), entry.DataHash)
	assert.Len(t, entry.DataHash, 64)
	repo.AssertExpectations(t)
}

func TestRecordRejectsMissingFields(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), NewEntry{RelatedEntityID: 1, Action: "x"})
	assert.Error(t, err)

	_, err = svc.Record(context.Background(), NewEntry{RelatedEntityID: 1, EntityType: "x"})
	assert.Error(t, err)

	repo.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
}

func TestComputeDataHashIsDeterministic(t *testing.T) {
	entry := &Entry{
		RelatedEntityID: 7,
		Action:          "Verification disputed",
		PerformedBy:     "0xbbbb000000000000000000000000000000000002",
		Timestamp:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		DetailsRef:      "QmReason",
	}
	first := ComputeDataHash(entry)
	assert.Equal(t, first, ComputeDataHash(entry))

	// sub-second timestamp differences do not change the digest
	entry.Timestamp = entry.Timestamp.Add(500 * time.Millisecond)
	assert.Equal(t, first, ComputeDataHash(entry))

	entry.Action = "Dispute resolved"
	assert.NotEqual(t, first, ComputeDataHash(entry))
}

func TestVerifyDetectsTampering(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)

	intact := &Entry{
		ID:              1,
		RelatedEntityID: 9,
		EntityType:      "verification_request",
		Action:          "Verification finalized",
		PerformedBy:     "consensus",
		Timestamp:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		DetailsRef:      "final status VERIFIED with 2 approving responses",
	}
	intact.DataHash = ComputeDataHash(intact)

	tampered := *intact
	tampered.ID = 2
	tampered.DetailsRef = "final status REJECTED with 0 approving responses"

	repo.On("GetEntry", mock.Anything, int64(1)).Return(intact, nil)
	repo.On("GetEntry", mock.Anything, int64(2)).Return(&tampered, nil)
	repo.On("GetEntry", mock.Anything, int64(3)).Return(nil, ErrEntryNotFound)

	ok, err := svc.Verify(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Verify(context.Background(), 3)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestCoreRecorderMapsEvents(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)
	recorder := svc.RecorderFor(nil)

	repo.On("CreateEntry", mock.Anything, mock.MatchedBy(func(entry *Entry) bool {
		return entry.RelatedEntityID == 5 &&
			entry.EntityType == "verification_request" &&
			entry.Action == "Verification expired" &&
			entry.PerformedBy == "system"
	})).Return(nil)

	err := recorder.Record(context.Background(), verification.AuditEvent{
		EntityID:    5,
		EntityType:  "verification_request",
		Action:      "Verification expired",
		PerformedBy: "system",
		Details:     "deadline passed",
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
