package notifications

import (
	"time"

	"citiproof/civic-portal/civic-portal-backend/internal/verification"
)

// Broadcaster fans an event out to live subscribers. Satisfied by the
// websocket manager.
type Broadcaster interface {
	Broadcast(event Event)
}

// Service publishes verification lifecycle events. It implements the
// publisher capability the verification core consumes; publishing is
// fire-and-forget and never affects core state.
type Service struct {
	broadcaster Broadcaster
}

// NewService creates a new notifications service
func NewService(broadcaster Broadcaster) *Service {
	return &Service{broadcaster: broadcaster}
}

// PublishFinalization implements verification.Publisher.
func (s *Service) PublishFinalization(requestID int64, status verification.RequestStatus, completedVerifications int) {
	s.broadcaster.Broadcast(Event{
		Type:      EventFinalized,
		RequestID: requestID,
		Data: map[string]interface{}{
			"final_status":            status,
			"completed_verifications": completedVerifications,
		},
		Timestamp: time.Now(),
	})
}

// PublishDispute implements verification.Publisher.
func (s *Service) PublishDispute(requestID int64, responseIndex int) {
	s.broadcaster.Broadcast(Event{
		Type:      EventDisputed,
		RequestID: requestID,
		Data: map[string]interface{}{
			"response_index": responseIndex,
		},
		Timestamp: time.Now(),
	})
}

// PublishExpiry implements verification.Publisher.
func (s *Service) PublishExpiry(requestID int64) {
	s.broadcaster.Broadcast(Event{
		Type:      EventExpired,
		RequestID: requestID,
		Timestamp: time.Now(),
	})
}
