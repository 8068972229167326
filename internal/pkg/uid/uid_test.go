package uid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_Generate(t *testing.T) {
	s, err := NewSnowflake(1)
	require.NoError(t, err)

	seen := make(map[int64]struct{}, 1000)
	var prev int64
	for range 1000 {
		id := s.Generate()
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestNewSnowflake_RandomNode(t *testing.T) {
	s, err := NewSnowflake(-1)
	require.NoError(t, err)
	assert.Positive(t, s.Generate())

	_, err = NewSnowflake(1 << 20)
	assert.Error(t, err)
}

func TestUUID_Generate(t *testing.T) {
	id := NewUUID().Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
