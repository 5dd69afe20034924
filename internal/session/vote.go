package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/DoyleJ11/werewolf-client/internal/protocol"
)

var ErrNoActiveVote = errors.New("no active vote")
var ErrUnknownCandidate = errors.New("answer is not a candidate")
var ErrNothingToReopen = errors.New("no closed vote to reopen")

type VoteKind string

const (
	VoteRoster    VoteKind = "roster"
	VoteCustom    VoteKind = "custom"
	VoteYesNo     VoteKind = "yes-no"
	VoteMalformed VoteKind = "malformed"
)

var (
	yesNo       = []string{"Yes", "No"}
	placeholder = []string{"ChoiceError1", "ChoiceError2"}
)

type VotePrompt struct {
	ID          json.RawMessage `json:"id"`
	Instruction string          `json:"instruct"`
	Kind        VoteKind        `json:"kind"`
	Candidates  []string        `json:"candidates"`
}

func (p VotePrompt) clone() *VotePrompt {
	p.ID = slices.Clone(p.ID)
	p.Candidates = slices.Clone(p.Candidates)
	return &p
}

// Has reports whether answer is one of the prompt's candidates.
func (p VotePrompt) Has(answer string) bool {
	return slices.Contains(p.Candidates, answer)
}

// Kind maps the choice "type" field onto a vote kind:
//
//	missing, 1 (or true)  -> roster
//	2                     -> custom list from "choices"
//	any other truthy      -> yes/no
//	falsy (0, false, "")  -> malformed
func Kind(m protocol.Message) VoteKind {
	v, ok := m.Value("type")
	if !ok {
		return VoteRoster
	}
	switch t := v.(type) {
	case bool:
		if t {
			return VoteRoster
		}
	case float64:
		switch t {
		case 1:
			return VoteRoster
		case 2:
			return VoteCustom
		}
	}
	if m.Truthy("type", true) {
		return VoteYesNo
	}
	return VoteMalformed
}

// Candidates resolves the answers offered for a choice message. Blank entries
// are dropped.
func Candidates(kind VoteKind, m protocol.Message, roster []string) []string {
	var src []string
	switch kind {
	case VoteRoster:
		src = roster
	case VoteCustom:
		src = m.Strings("choices")
	case VoteYesNo:
		src = yesNo
	default:
		src = placeholder
	}

	out := make([]string, 0, len(src))
	for _, c := range src {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func newPrompt(m protocol.Message, roster []string) VotePrompt {
	id, ok := m.Raw("id")
	if !ok {
		id = json.RawMessage("null")
	}
	kind := Kind(m)
	return VotePrompt{
		ID:          id,
		Instruction: m.String("instruct", "Vote"),
		Kind:        kind,
		Candidates:  Candidates(kind, m, roster),
	}
}

// Answer selects answer on the pending prompt. It returns the record to send
// and clears the prompt.
func Answer(s State, answer string) (protocol.ChoiceAnswer, []Event, State, error) {
	p := s.PendingVote
	if p == nil {
		return protocol.ChoiceAnswer{}, nil, s, ErrNoActiveVote
	}
	if !p.Has(answer) {
		return protocol.ChoiceAnswer{}, nil, s, fmt.Errorf("%w: %q", ErrUnknownCandidate, answer)
	}

	rec := protocol.NewChoiceAnswer(slices.Clone(p.ID), answer)
	newState := s
	newState.PendingVote = nil
	newState.ClosedVote = nil

	events := []Event{logLine("You chose: "+answer, SeveritySystem)}
	return rec, events, newState, nil
}

// CloseVote dismisses the pending prompt but keeps it for ReopenVote.
func CloseVote(s State) (State, error) {
	if s.PendingVote == nil {
		return s, ErrNoActiveVote
	}
	newState := s
	newState.ClosedVote = s.PendingVote
	newState.PendingVote = nil
	return newState, nil
}

// ReopenVote presents a previously closed prompt again.
func ReopenVote(s State) ([]Event, State, error) {
	if s.PendingVote != nil {
		return []Event{{Type: EvtVotePrompted, Prompt: s.PendingVote.clone()}}, s, nil
	}
	if s.ClosedVote == nil {
		return nil, s, ErrNothingToReopen
	}
	newState := s
	newState.PendingVote = s.ClosedVote
	newState.ClosedVote = nil
	return []Event{{Type: EvtVotePrompted, Prompt: newState.PendingVote.clone()}}, newState, nil
}
