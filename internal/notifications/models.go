package notifications

import "time"

// EventType identifies one kind of verification lifecycle event.
type EventType string

const (
	EventFinalized EventType = "verification.finalized"
	EventDisputed  EventType = "verification.disputed"
	EventExpired   EventType = "verification.expired"
)

// Event is one message pushed to live subscribers (the UI's activity feed).
type Event struct {
	Type      EventType              `json:"type"`
	RequestID int64                  `json:"request_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
