package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/DoyleJ11/werewolf-client/internal/client"
)

// Client is the part of *client.Client the console drives.
type Client interface {
	Connect(ctx context.Context, address, name string) error
	Disconnect(ctx context.Context) error
	SubmitChat(ctx context.Context, text string) error
	SubmitVote(ctx context.Context, answer string) error
	SubmitVoteIndex(ctx context.Context, i int) error
	CloseVote(ctx context.Context) error
	ReopenVote(ctx context.Context) error
	State(ctx context.Context) (client.View, error)
}

var errQuit = errors.New("quit")

const help = `Commands:
  /connect <host[:port]> [name]  join a game server
  /disconnect                    leave the current server
  /vote <n|#n|name>              answer the open vote
  /votes                         show the vote again
  /close                         hide the open vote
  /roster                        list players
  /history                       print the session log
  /help                          show this list
  /quit                          exit
Anything else is sent as chat.`

// Run reads commands from in until EOF, /quit or ctx is done. A nil return
// means the player asked to leave.
func (c *Console) Run(ctx context.Context, in io.Reader, cl Client) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// The scanner blocks in Read, which ctx cannot interrupt.
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line := <-lines:
			if err := c.Exec(ctx, cl, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}

// Exec runs one typed line. Player mistakes are printed, not returned; only
// /quit and a stopped client end the session.
func (c *Console) Exec(ctx context.Context, cl Client, line string) error {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return c.report(cl.SubmitChat(ctx, line))
	}

	cmd, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return errQuit

	case "/help":
		c.println(help)
		return nil

	case "/connect":
		host, name, _ := strings.Cut(rest, " ")
		name = strings.TrimSpace(name)
		if name == "" {
			name = c.name
		}
		if host == "" || name == "" {
			c.warn("usage: /connect <host[:port]> [name]")
			return nil
		}
		c.printf("Connecting to %s as %s...", host, name)
		return c.report(cl.Connect(ctx, host, name))

	case "/disconnect":
		return c.report(cl.Disconnect(ctx))

	case "/vote":
		if rest == "" {
			c.warn("usage: /vote <n|#n|name>")
			return nil
		}
		if n, ok := strings.CutPrefix(rest, "#"); ok {
			i, err := strconv.Atoi(n)
			if err != nil {
				c.warn("usage: /vote #<n>")
				return nil
			}
			return c.report(cl.SubmitVoteIndex(ctx, i-1))
		}
		i, err := strconv.Atoi(rest)
		if err != nil {
			return c.report(cl.SubmitVote(ctx, rest))
		}
		// A candidate may be named like a number; the name wins.
		v, err := cl.State(ctx)
		if err != nil {
			return err
		}
		if p := v.State.PendingVote; p != nil && p.Has(rest) {
			return c.report(cl.SubmitVote(ctx, rest))
		}
		return c.report(cl.SubmitVoteIndex(ctx, i-1))

	case "/votes":
		return c.report(cl.ReopenVote(ctx))

	case "/close":
		return c.report(cl.CloseVote(ctx))

	case "/roster":
		v, err := cl.State(ctx)
		if err != nil {
			return err
		}
		c.OnRosterChanged(v.State.Roster)
		return nil

	case "/history":
		v, err := cl.State(ctx)
		if err != nil {
			return err
		}
		for _, l := range v.Log {
			c.OnLog(l.Text, l.Severity)
		}
		return nil

	default:
		c.warn("unknown command %s (try /help)", cmd)
		return nil
	}
}

func (c *Console) report(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, client.ErrStopped), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, client.ErrConnectFailed):
		// already shown through OnConnectionLost
		return nil
	default:
		c.warn("%v", err)
		return nil
	}
}
