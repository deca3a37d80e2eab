package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{KindNone, "None"},
		{KindAttrib, "Attrib"},
		{KindModify, "Modify"},
		{KindCreate, "Create"},
		{KindDelete, "Delete"},
		{KindMove, "Move"},
		{KindMoveFrom, "MoveFrom"},
		{KindMoveTo, "MoveTo"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestParseKind_RoundTrip(t *testing.T) {
	kinds := []EventKind{KindAttrib, KindModify, KindCreate, KindDelete, KindMove, KindMoveFrom, KindMoveTo}

	for _, k := range kinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestParseKind_Rejects(t *testing.T) {
	for _, name := range []string{"None", "", "create", "Rename", "Overflow"} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseKind(name)
			assert.Error(t, err)
		})
	}
}

func TestEventKind_IsMove(t *testing.T) {
	assert.True(t, KindMove.IsMove())
	assert.True(t, KindMoveFrom.IsMove())
	assert.True(t, KindMoveTo.IsMove())
	assert.False(t, KindCreate.IsMove())
	assert.False(t, KindNone.IsMove())
}
