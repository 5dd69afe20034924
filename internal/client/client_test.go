package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/werewolf-client/internal/conn"
	"github.com/DoyleJ11/werewolf-client/internal/session"
)

type call struct {
	method string
	args   []any
}

type recorder struct{ calls chan call }

func newRecorder() *recorder { return &recorder{calls: make(chan call, 256)} }

func (r *recorder) OnLog(text string, sev session.Severity) {
	r.calls <- call{"OnLog", []any{text, sev}}
}
func (r *recorder) OnRosterChanged(roster []string) {
	r.calls <- call{"OnRosterChanged", []any{roster}}
}
func (r *recorder) OnRoleRevealed(role, desc string) {
	r.calls <- call{"OnRoleRevealed", []any{role, desc}}
}
func (r *recorder) OnPhaseChanged(p session.Phase) { r.calls <- call{"OnPhaseChanged", []any{p}} }
func (r *recorder) OnVotePrompt(p session.VotePrompt) {
	r.calls <- call{"OnVotePrompt", []any{p}}
}
func (r *recorder) OnDeath()               { r.calls <- call{"OnDeath", nil} }
func (r *recorder) OnGameEnd(winner string) { r.calls <- call{"OnGameEnd", []any{winner}} }
func (r *recorder) OnConnectionLost(reason error) {
	r.calls <- call{"OnConnectionLost", []any{reason}}
}

// helper: next presenter call with a timeout so tests never hang
func recvCall(t *testing.T, r *recorder, within time.Duration) call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(within):
		t.Fatalf("timed out waiting for presenter call")
		return call{} // unreachable
	}
}

func expectCall(t *testing.T, r *recorder, method string) call {
	t.Helper()
	c := recvCall(t, r, time.Second)
	if c.method != method {
		t.Fatalf("want %s, got %s%v", method, c.method, c.args)
	}
	return c
}

func recvNoCall(t *testing.T, r *recorder, within time.Duration) {
	t.Helper()
	select {
	case c := <-r.calls:
		t.Fatalf("expected no presenter call within %v, got %s%v", within, c.method, c.args)
	case <-time.After(within):
	}
}

// server is the far end of the pipe. Chunks go through one writer goroutine
// so they reach the client in the order they were queued.
type server struct {
	nc     net.Conn
	r      *bufio.Reader
	chunks chan string
}

func newServer(t *testing.T, nc net.Conn) server {
	t.Helper()
	s := server{nc: nc, r: bufio.NewReader(nc), chunks: make(chan string, 16)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range s.chunks {
			if _, err := nc.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		close(s.chunks)
		nc.Close()
		<-done
	})
	return s
}

func (s server) write(t *testing.T, chunk string) {
	t.Helper()
	s.chunks <- chunk
}

func (s server) readLine(t *testing.T) string {
	t.Helper()
	lines := make(chan string, 1)
	go func() {
		line, err := s.r.ReadString('\n')
		if err == nil {
			lines <- line
		}
	}()
	select {
	case line := <-lines:
		return line
	case <-time.After(time.Second):
		t.Fatalf("timed out reading what the client sent")
		return ""
	}
}

func setup(t *testing.T, opts Options) (*Client, *recorder, chan net.Conn) {
	t.Helper()
	servers := make(chan net.Conn, 4)
	opts.Dialer = func(ctx context.Context, address string) (net.Conn, error) {
		c, s := net.Pipe()
		servers <- s
		return c, nil
	}
	rec := newRecorder()
	c := New(context.Background(), rec, opts)
	t.Cleanup(func() { c.Close() })
	return c, rec, servers
}

func connect(t *testing.T, c *Client, rec *recorder, servers chan net.Conn) server {
	t.Helper()
	require.NoError(t, c.Connect(context.Background(), "game.local", "Alice"))
	s := newServer(t, <-servers)
	assert.Equal(t, `{"action":"join","name":"Alice"}`+"\n", s.readLine(t))

	c1 := expectCall(t, rec, "OnLog")
	assert.Equal(t, "Connected to server", c1.args[0])
	return s
}

func TestClient_EndToEndVote(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	// 1) roster and prompt arrive in two chunks split mid-record
	srv.write(t, `{"action":"players","list":["Alice","Bob"]}`+"\n"+`{"action":"choice","id":7,`)
	srv.write(t, `"type":1,"instruct":"Vote now"}`+"\n")

	// 2) roster is surfaced first, then the prompt
	roster := expectCall(t, rec, "OnRosterChanged")
	assert.Equal(t, []string{"Alice", "Bob"}, roster.args[0])

	prompt := expectCall(t, rec, "OnVotePrompt").args[0].(session.VotePrompt)
	assert.Equal(t, []string{"Alice", "Bob"}, prompt.Candidates)
	assert.Equal(t, "Vote now", prompt.Instruction)
	assert.Equal(t, "7", string(prompt.ID))

	// 3) picking Bob sends exactly one answer and clears the prompt
	require.NoError(t, c.SubmitVote(ctx, "Bob"))
	assert.Equal(t, `{"action":"choiceAnswer","id":7,"answer":"Bob"}`+"\n", srv.readLine(t))
	assert.Equal(t, "You chose: Bob", expectCall(t, rec, "OnLog").args[0])

	v, err := c.State(ctx)
	require.NoError(t, err)
	assert.Nil(t, v.State.PendingVote)
	assert.ErrorIs(t, c.SubmitVote(ctx, "Bob"), session.ErrNoActiveVote)
}

func TestClient_VoteByIndexAndReopen(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	srv.write(t, `{"action":"choice","id":"witch-1","type":3,"instruct":"Save them?"}`+"\n")
	expectCall(t, rec, "OnVotePrompt")

	require.NoError(t, c.CloseVote(ctx))
	assert.ErrorIs(t, c.SubmitVoteIndex(ctx, 0), session.ErrNoActiveVote)

	require.NoError(t, c.ReopenVote(ctx))
	again := expectCall(t, rec, "OnVotePrompt").args[0].(session.VotePrompt)
	assert.Equal(t, []string{"Yes", "No"}, again.Candidates)

	assert.ErrorIs(t, c.SubmitVoteIndex(ctx, 5), ErrNoSuchCandidate)
	require.NoError(t, c.SubmitVoteIndex(ctx, 1))
	assert.Equal(t, `{"action":"choiceAnswer","id":"witch-1","answer":"No"}`+"\n", srv.readLine(t))
}

func TestClient_BlankChatSendsNothing(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})

	assert.ErrorIs(t, c.SubmitChat(ctx, "hello"), ErrNotConnected)

	srv := connect(t, c, rec, servers)

	assert.ErrorIs(t, c.SubmitChat(ctx, "   "), ErrBlankChat)
	assert.ErrorIs(t, c.SubmitChat(ctx, ""), ErrBlankChat)
	require.NoError(t, c.SubmitChat(ctx, "  hi all "))

	// the first thing after the handshake is the real chat line
	assert.Equal(t, `{"action":"chat","content":"hi all"}`+"\n", srv.readLine(t))
}

func TestClient_ChatUnlimitedByDefault(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	for i := 0; i < 30; i++ {
		require.NoError(t, c.SubmitChat(ctx, "spam"))
		assert.Equal(t, `{"action":"chat","content":"spam"}`+"\n", srv.readLine(t))
	}
}

func TestClient_ChatThrottle(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{ChatRate: 0.001, ChatBurst: 1})
	srv := connect(t, c, rec, servers)

	require.NoError(t, c.SubmitChat(ctx, "one"))
	assert.ErrorIs(t, c.SubmitChat(ctx, "two"), ErrChatThrottled)
	assert.Equal(t, `{"action":"chat","content":"one"}`+"\n", srv.readLine(t))
}

func TestClient_DeadPlayerGetsNoPrompt(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	srv.write(t, `{"action":"death"}`+"\n"+`{"action":"choice","id":1,"type":1,"instruct":"Vote"}`+"\n"+`{"action":"end","winner":"wolves"}`+"\n")

	line := expectCall(t, rec, "OnLog")
	assert.Equal(t, "YOU ARE DEAD", line.args[0])
	assert.Equal(t, session.SeverityAlert, line.args[1])
	expectCall(t, rec, "OnDeath")
	// the prompt is skipped entirely; the next call is the game end
	assert.Equal(t, "wolves", expectCall(t, rec, "OnGameEnd").args[0])

	v, err := c.State(ctx)
	require.NoError(t, err)
	assert.False(t, v.State.Alive)
	assert.Nil(t, v.State.PendingVote)
	assert.True(t, v.State.Ended)
}

func TestClient_UnknownAndMalformedRecordsAreSkipped(t *testing.T) {
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	srv.write(t, `{"action":"dance"}`+"\n"+`{broken`+"\n"+`{"action":"role","role":"Seer","description":"Sees at night"}`+"\n")

	role := expectCall(t, rec, "OnRoleRevealed")
	assert.Equal(t, []any{"Seer", "Sees at night"}, role.args)
	recvNoCall(t, rec, 50*time.Millisecond)
}

func TestClient_PhaseEvents(t *testing.T) {
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	srv.write(t, `{"action":"phase","value":"night"}`+"\n")
	assert.Equal(t, session.PhaseNight, expectCall(t, rec, "OnPhaseChanged").args[0])
	assert.Equal(t, "Night phase", expectCall(t, rec, "OnLog").args[0])

	v, err := c.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.PhaseNight, v.State.Phase)
}

func TestClient_ConnectionLostAndReconnect(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})
	srv := connect(t, c, rec, servers)

	assert.ErrorIs(t, c.Connect(ctx, "game.local", "Alice"), ErrAlreadyConnected)

	srv.write(t, `{"action":"death"}`+"\n")
	expectCall(t, rec, "OnLog")
	expectCall(t, rec, "OnDeath")

	srv.nc.Close()
	lost := expectCall(t, rec, "OnConnectionLost")
	assert.ErrorIs(t, lost.args[0].(error), conn.ErrClosedByPeer)

	v, err := c.State(ctx)
	require.NoError(t, err)
	assert.False(t, v.Connected)
	assert.ErrorIs(t, c.SubmitChat(ctx, "hello?"), ErrNotConnected)

	// a manual reconnect is a fresh session
	connect(t, c, rec, servers)
	v, err = c.State(ctx)
	require.NoError(t, err)
	assert.True(t, v.Connected)
	assert.True(t, v.State.Alive)
}

func TestClient_ConnectFailureReachesPresenter(t *testing.T) {
	ctx := context.Background()
	refused := errors.New("connection refused")
	rec := newRecorder()
	c := New(ctx, rec, Options{Dialer: func(context.Context, string) (net.Conn, error) {
		return nil, refused
	}})
	t.Cleanup(func() { c.Close() })

	err := c.Connect(ctx, "game.local", "Alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.ErrorIs(t, err, refused)

	lost := expectCall(t, rec, "OnConnectionLost")
	assert.ErrorIs(t, lost.args[0].(error), refused)

	v, err := c.State(ctx)
	require.NoError(t, err)
	assert.False(t, v.Connected)
}

func TestClient_Disconnect(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{})
	connect(t, c, rec, servers)

	require.NoError(t, c.Disconnect(ctx))
	assert.Equal(t, "Disconnected", expectCall(t, rec, "OnLog").args[0])
	assert.ErrorIs(t, c.Disconnect(ctx), ErrNotConnected)
	recvNoCall(t, rec, 50*time.Millisecond)
}

func TestClient_LogRetention(t *testing.T) {
	ctx := context.Background()
	c, rec, servers := setup(t, Options{LogRetention: 2})
	srv := connect(t, c, rec, servers)

	srv.write(t, `{"action":"chat","content":"one"}`+"\n"+`{"action":"chat","content":"two"}`+"\n")
	expectCall(t, rec, "OnLog")
	expectCall(t, rec, "OnLog")

	v, err := c.State(ctx)
	require.NoError(t, err)
	require.Len(t, v.Log, 2)
	assert.Equal(t, "SYS : one", v.Log[0].Text)
	assert.Equal(t, "SYS : two", v.Log[1].Text)
}

func TestClient_CloseStopsEverything(t *testing.T) {
	c, rec, servers := setup(t, Options{})
	connect(t, c, rec, servers)

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	default:
		t.Fatalf("loop still running after Close")
	}
	assert.ErrorIs(t, c.SubmitChat(context.Background(), "bye"), ErrStopped)
}
