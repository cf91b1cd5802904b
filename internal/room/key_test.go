package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatKeyCanonical(t *testing.T) {
	pairs := [][2]int{{1, 2}, {2, 1}, {7, 7}, {100, 3}, {3, 100}}
	for _, p := range pairs {
		assert.Equal(t, ChatKey(p[0], p[1]), ChatKey(p[1], p[0]))
	}
	assert.Equal(t, "chat_1_2", ChatKey(2, 1))
	assert.Equal(t, "chat_3_100", ChatKey(100, 3))
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "group_42", GroupKey(42))
}

func TestParseKey(t *testing.T) {
	parsed, err := ParseKey("chat_3_100")
	require.NoError(t, err)
	assert.False(t, parsed.Group)
	assert.Equal(t, 3, parsed.UserA)
	assert.Equal(t, 100, parsed.UserB)

	parsed, err = ParseKey("group_42")
	require.NoError(t, err)
	assert.True(t, parsed.Group)
	assert.Equal(t, 42, parsed.GroupID)

	for _, bad := range []string{"", "chat_1", "chat_a_b", "group_x", "lobby_9"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, "key %q should not parse", bad)
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	parsed, err := ParseKey(ChatKey(9, 4))
	require.NoError(t, err)
	assert.Equal(t, ChatKey(parsed.UserA, parsed.UserB), ChatKey(9, 4))
}
