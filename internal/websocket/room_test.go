package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "7", ChatRoom(7).Key())
	assert.Equal(t, "user_3", UserRoom(3).Key())
	assert.Equal(t, "call_7", CallRoom(7).Key())
	assert.Equal(t, "global", NamedRoom("global").Key())
}

func TestRoomKindsDoNotCollide(t *testing.T) {
	rooms := map[Room]bool{ChatRoom(7): true, UserRoom(7): true, CallRoom(7): true}
	assert.Len(t, rooms, 3)
}

func TestParseRoom(t *testing.T) {
	cases := map[string]Room{
		"7":       ChatRoom(7),
		" 7 ":     ChatRoom(7),
		"chat_7":  ChatRoom(7),
		"user_12": UserRoom(12),
		"call_9":  CallRoom(9),
		"global":  NamedRoom("global"),
		"0":       NamedRoom("0"),
	}
	for in, want := range cases {
		got, err := ParseRoom(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "  ", "user_", "call_x", "chat_-1"} {
		_, err := ParseRoom(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
