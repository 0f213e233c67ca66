package workflows

// StateMachine enforces verification request status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"PENDING":     {"IN_PROGRESS", "DISPUTED", "EXPIRED"},
			"IN_PROGRESS": {"VERIFIED", "REJECTED", "DISPUTED", "EXPIRED"},
			"VERIFIED":    {"DISPUTED"}, // disputing a response reopens a finalized request
			"REJECTED":    {"DISPUTED"},
			"DISPUTED":    {"VERIFIED", "REJECTED"},
			"EXPIRED":     {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
