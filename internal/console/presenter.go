// Package console is the terminal front end: it renders what the client
// presents and turns typed lines into player actions.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/DoyleJ11/werewolf-client/internal/client"
	"github.com/DoyleJ11/werewolf-client/internal/session"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Console implements client.Presenter on a writer. Output from the dispatch
// loop and from the input loop is serialized.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	colors bool
	name   string
}

var _ client.Presenter = (*Console)(nil)

// New writes to out. defaultName is used by /connect when no name is typed.
func New(out io.Writer, colors bool, defaultName string) *Console {
	return &Console{out: out, colors: colors, name: defaultName}
}

func (c *Console) color(code, text string) string {
	if !c.colors {
		return text
	}
	return code + text + colorReset
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *Console) printf(format string, args ...any) {
	c.println(fmt.Sprintf(format, args...))
}

// warn reports a local problem, such as a rejected command.
func (c *Console) warn(format string, args ...any) {
	c.println(c.color(colorYellow, "⚠ ") + fmt.Sprintf(format, args...))
}

func (c *Console) OnLog(text string, severity session.Severity) {
	switch severity {
	case session.SeveritySystem:
		c.println(c.color(colorCyan, text))
	case session.SeverityAlert:
		c.println(c.color(colorRed+colorBold, text))
	default:
		c.println(text)
	}
}

func (c *Console) OnRosterChanged(roster []string) {
	if len(roster) == 0 {
		c.println(c.color(colorGray, "Players: (none)"))
		return
	}
	c.println(c.color(colorGray, "Players: "+strings.Join(roster, ", ")))
}

func (c *Console) OnRoleRevealed(role, description string) {
	var b strings.Builder
	b.WriteString(c.color(colorBold, "Your role: "+role))
	if description != "" {
		b.WriteString("\n  ")
		b.WriteString(description)
	}
	c.println(b.String())
}

// OnPhaseChanged is silent; the session already logs the phase line.
func (c *Console) OnPhaseChanged(session.Phase) {}

func (c *Console) OnVotePrompt(prompt session.VotePrompt) {
	var b strings.Builder
	b.WriteString(c.color(colorBlue+colorBold, prompt.Instruction))
	for i, cand := range prompt.Candidates {
		fmt.Fprintf(&b, "\n  %d) %s", i+1, cand)
	}
	if len(prompt.Candidates) == 0 {
		b.WriteString("\n  (no candidates)")
	}
	b.WriteString("\n")
	b.WriteString(c.color(colorGray, "  /vote <n> to answer, /close to hide"))
	c.println(b.String())
}

func (c *Console) OnDeath() {
	c.println(c.color(colorGray, "You can still read the chat but no longer vote."))
}

func (c *Console) OnGameEnd(winner string) {
	outcome := session.Outcome(winner)
	code := colorRed
	if outcome == "VICTORY" {
		code = colorGreen
	}
	c.println(c.color(code+colorBold, outcome))
}

func (c *Console) OnConnectionLost(reason error) {
	c.println(c.color(colorRed, "✗ ") + fmt.Sprintf("Connection lost: %v", reason))
	c.println(c.color(colorGray, "  /connect <host> [name] to join again"))
}
