// Package protocol holds the game server wire format: newline-delimited JSON
// records keyed by an "action" tag.
//
// Client -> Server
//
//	join:         name
//	chat:         content
//	choiceAnswer: id, answer
//
// Server -> Client
//
//	chat:    content, fromPlayer?, isSystem?
//	players: list
//	role:    role, description?
//	phase:   value ("night" | anything else is day)
//	choice:  id, instruct, type?, choices?
//	death:   {}
//	end:     winner
package protocol

// DefaultPort is the well-known game service port, used when an address omits one.
const DefaultPort = "5555"

// Delimiter terminates every record on the wire.
const Delimiter = '\n'

// DefaultMaxRecordBytes bounds a single buffered record.
const DefaultMaxRecordBytes = 1 << 20

const (
	ActionJoin         = "join"
	ActionChat         = "chat"
	ActionChoiceAnswer = "choiceAnswer"

	ActionPlayers = "players"
	ActionRole    = "role"
	ActionPhase   = "phase"
	ActionChoice  = "choice"
	ActionDeath   = "death"
	ActionEnd     = "end"
)

// Known reports whether action is one of the server-to-client tags.
func Known(action string) bool {
	switch action {
	case ActionChat, ActionPlayers, ActionRole, ActionPhase, ActionChoice, ActionDeath, ActionEnd:
		return true
	default:
		return false
	}
}
