package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewTaskID(), "task-"))
	assert.True(t, strings.HasPrefix(NewPlanID(), "plan-"))
	assert.True(t, strings.HasPrefix(NewApprovalID(), "approval-"))
	assert.True(t, strings.HasPrefix(NewCallID(), "call-"))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTaskID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTimeOrdered(t *testing.T) {
	// UUIDv7 identifiers with the same prefix sort by creation time.
	first := NewTaskID()
	second := NewTaskID()
	assert.LessOrEqual(t, first, second)
}
