package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChat_BlankIsRejected(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n", "  "} {
		_, ok := NewChat(text)
		assert.False(t, ok, "%q should not produce a record", text)
	}
}

func TestNewChat_TrimsAndNormalizes(t *testing.T) {
	// "e" + combining acute composes to "é"
	c, ok := NewChat("  cafe\u0301  ")
	require.True(t, ok)
	assert.Equal(t, "caf\u00e9", c.Content)
	assert.Equal(t, ActionChat, c.Action)
}

func TestEncodeOutbound(t *testing.T) {
	chat, _ := NewChat("hello")
	cases := []struct {
		name string
		rec  Record
		want string
	}{
		{"join", NewJoin(" Alice "), `{"action":"join","name":"Alice"}`},
		{"chat", chat, `{"action":"chat","content":"hello"}`},
		{"answer with string id", NewChoiceAnswer([]byte(`"v-1"`), "Yes"), `{"action":"choiceAnswer","id":"v-1","answer":"Yes"}`},
		{"answer without id", NewChoiceAnswer(nil, "No"), `{"action":"choiceAnswer","id":null,"answer":"No"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Encode(tc.rec)
			require.NoError(t, err)
			assert.Equal(t, tc.want+"\n", string(b))
		})
	}
}
