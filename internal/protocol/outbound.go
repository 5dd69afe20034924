package protocol

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Join is the handshake, sent once per connection.
type Join struct {
	Action string `json:"action"`
	Name   string `json:"name"`
}

func (Join) ActionName() string { return ActionJoin }

func NewJoin(name string) Join {
	return Join{Action: ActionJoin, Name: clean(name)}
}

type Chat struct {
	Action  string `json:"action"`
	Content string `json:"content"`
}

func (Chat) ActionName() string { return ActionChat }

// NewChat builds a chat record. ok is false for blank text, which must not be
// sent.
func NewChat(text string) (c Chat, ok bool) {
	content := clean(text)
	if content == "" {
		return Chat{}, false
	}
	return Chat{Action: ActionChat, Content: content}, true
}

// ChoiceAnswer answers a vote prompt. ID echoes the prompt id exactly as the
// server sent it.
type ChoiceAnswer struct {
	Action string          `json:"action"`
	ID     json.RawMessage `json:"id"`
	Answer string          `json:"answer"`
}

func (ChoiceAnswer) ActionName() string { return ActionChoiceAnswer }

func NewChoiceAnswer(id json.RawMessage, answer string) ChoiceAnswer {
	return ChoiceAnswer{Action: ActionChoiceAnswer, ID: id, Answer: answer}
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
