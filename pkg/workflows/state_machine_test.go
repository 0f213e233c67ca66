package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewStateMachine()

	allowed := []struct{ from, to string }{
		{"PENDING", "IN_PROGRESS"},
		{"PENDING", "DISPUTED"},
		{"PENDING", "EXPIRED"},
		{"IN_PROGRESS", "VERIFIED"},
		{"IN_PROGRESS", "REJECTED"},
		{"IN_PROGRESS", "DISPUTED"},
		{"IN_PROGRESS", "EXPIRED"},
		{"VERIFIED", "DISPUTED"},
		{"REJECTED", "DISPUTED"},
		{"DISPUTED", "VERIFIED"},
		{"DISPUTED", "REJECTED"},
	}
	for _, tc := range allowed {
		assert.True(t, sm.CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to string }{
		{"PENDING", "VERIFIED"},
		{"PENDING", "REJECTED"},
		{"VERIFIED", "IN_PROGRESS"},
		{"VERIFIED", "REJECTED"},
		{"REJECTED", "VERIFIED"},
		{"DISPUTED", "EXPIRED"},
		{"EXPIRED", "PENDING"},
		{"EXPIRED", "DISPUTED"},
		{"UNKNOWN", "PENDING"},
	}
	for _, tc := range denied {
		assert.False(t, sm.CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestExpiredIsTerminal(t *testing.T) {
	sm := NewStateMachine()
	assert.Empty(t, sm.GetAllowedTransitions("EXPIRED"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}
