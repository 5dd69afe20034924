package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/werewolf-client/internal/protocol"
)

var ErrUnknownAction = errors.New("unknown action")

type Phase string

const (
	PhaseDay   Phase = "day"
	PhaseNight Phase = "night"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySystem
	SeverityAlert
)

func (s Severity) String() string {
	switch s {
	case SeveritySystem:
		return "system"
	case SeverityAlert:
		return "alert"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const systemSender = "SYS"

type State struct {
	Alive       bool        `json:"alive"`
	Phase       Phase       `json:"phase"`
	Roster      []string    `json:"roster"`
	PendingVote *VotePrompt `json:"pendingVote,omitempty"`
	ClosedVote  *VotePrompt `json:"closedVote,omitempty"` // dismissed but kept so it can be shown again
	Ended       bool        `json:"ended"`
	Winner      string      `json:"winner,omitempty"`
}

func NewState() State {
	return State{
		Alive:  true,
		Phase:  PhaseDay,
		Roster: []string{},
	}
}

type EventType string

const (
	EvtLog           EventType = "Log"
	EvtRosterChanged EventType = "RosterChanged"
	EvtRoleRevealed  EventType = "RoleRevealed"
	EvtPhaseChanged  EventType = "PhaseChanged"
	EvtVotePrompted  EventType = "VotePrompted"
	EvtDied          EventType = "Died"
	EvtGameEnded     EventType = "GameEnded"

	// Diagnostics only; never shown to the player.
	EvtPromptDropped EventType = "PromptDropped"
	EvtAnomaly       EventType = "Anomaly"
)

type Event struct {
	Type        EventType
	Text        string
	Severity    Severity
	Roster      []string
	Role        string
	Description string
	Phase       Phase
	Prompt      *VotePrompt
	Winner      string
}

func logLine(text string, sev Severity) Event {
	return Event{Type: EvtLog, Text: text, Severity: sev}
}

// required lists the fields each tag is expected to carry. Missing ones are
// reported as anomalies and replaced with defaults.
var required = map[string][]string{
	protocol.ActionChat:    {"content"},
	protocol.ActionPlayers: {"list"},
	protocol.ActionRole:    {"role"},
	protocol.ActionPhase:   {"value"},
	protocol.ActionChoice:  {"id", "instruct"},
	protocol.ActionEnd:     {"winner"},
}

func missingFields(m protocol.Message) []Event {
	var events []Event
	for _, key := range required[m.Action] {
		if !m.Has(key) {
			events = append(events, Event{
				Type: EvtAnomaly,
				Text: fmt.Sprintf("%s without %s", m.Action, key),
			})
		}
	}
	return events
}

// Apply interprets one server message against s. Unknown actions leave s
// untouched and return ErrUnknownAction.
func Apply(s State, m protocol.Message) ([]Event, State, error) {
	if !protocol.Known(m.Action) {
		return nil, s, fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
	}

	events := missingFields(m)
	newState := s

	switch m.Action {
	case protocol.ActionChat:
		sender := systemSender
		if !m.Truthy("isSystem", false) {
			sender = m.String("fromPlayer", systemSender)
		}
		if sender == "" {
			sender = systemSender
		}

		sev := SeverityInfo
		if sender == systemSender {
			sev = SeveritySystem
		}
		events = append(events, logLine(fmt.Sprintf("%s : %s", sender, m.String("content", "")), sev))

	case protocol.ActionPlayers:
		// Wholesale replacement, in server order.
		roster := m.Strings("list")
		if roster == nil {
			roster = []string{}
		}
		newState.Roster = roster
		events = append(events, Event{Type: EvtRosterChanged, Roster: slices.Clone(roster)})

	case protocol.ActionRole:
		events = append(events, Event{
			Type:        EvtRoleRevealed,
			Role:        m.String("role", "Unknown"),
			Description: m.String("description", ""),
		})

	case protocol.ActionPhase:
		if m.String("value", "") == string(PhaseNight) {
			newState.Phase = PhaseNight
			events = append(events,
				Event{Type: EvtPhaseChanged, Phase: PhaseNight},
				logLine("Night phase", SeveritySystem),
			)
		} else {
			newState.Phase = PhaseDay
			events = append(events,
				Event{Type: EvtPhaseChanged, Phase: PhaseDay},
				logLine("Day phase", SeveritySystem),
			)
		}

	case protocol.ActionChoice:
		if !s.Alive {
			// Dead players never vote; the prompt is dropped without a trace
			// for the player.
			return []Event{{Type: EvtPromptDropped, Text: m.String("instruct", "")}}, s, nil
		}

		prompt := newPrompt(m, s.Roster)
		if prompt.Kind == VoteMalformed {
			events = append(events, Event{Type: EvtAnomaly, Text: "choice with falsy type"})
		}

		// Last prompt wins; an unanswered one is replaced.
		newState.PendingVote = &prompt
		newState.ClosedVote = nil
		events = append(events, Event{Type: EvtVotePrompted, Prompt: prompt.clone()})

	case protocol.ActionDeath:
		newState.Alive = false
		events = append(events, logLine("YOU ARE DEAD", SeverityAlert))
		if s.Alive {
			events = append(events, Event{Type: EvtDied})
		}

	case protocol.ActionEnd:
		winner := m.String("winner", "")
		newState.Ended = true
		newState.Winner = winner
		events = append(events, Event{Type: EvtGameEnded, Winner: winner})
	}

	return events, newState, nil
}

// Outcome is the end-of-game headline for winner.
func Outcome(winner string) string {
	if winner == "you" {
		return "VICTORY"
	}
	return "DEFEAT"
}
