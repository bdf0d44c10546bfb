package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULIDIsMonotonic(t *testing.T) {
	prev := NewULID()
	for i := 0; i < 100; i++ {
		next := NewULID()
		_, err := ulid.ParseStrict(next)
		require.NoError(t, err)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestRobotID(t *testing.T) {
	id := RobotID("Frozen Foods")
	assert.Regexp(t, `^frozen-foods-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, RobotID("Frozen Foods"))
	assert.Regexp(t, `^robot-[0-9a-f]{8}$`, RobotID("  "))
}
