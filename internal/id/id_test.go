package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Format(t *testing.T) {
	id := Job()

	assert.True(t, strings.HasPrefix(id, "job-"))
	assert.Len(t, id, len("job-")+10)

	for _, char := range strings.TrimPrefix(id, "job-") {
		assert.True(t,
			(char >= 'a' && char <= 'z') || (char >= '0' && char <= '9'),
			"character %c should be lowercase alphanumeric", char)
	}
}

func TestJob_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id := Job()
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	id, err := Generate("run")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "run-"))
	assert.Equal(t, len("run")+1+21, len(id))
}
