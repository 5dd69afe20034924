package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/werewolf-client/internal/conn"
	"github.com/DoyleJ11/werewolf-client/internal/metrics"
	"github.com/DoyleJ11/werewolf-client/internal/protocol"
	"github.com/DoyleJ11/werewolf-client/internal/session"
)

var ErrNotConnected = errors.New("not connected")
var ErrAlreadyConnected = errors.New("already connected")
var ErrBlankChat = errors.New("blank chat message")
var ErrChatThrottled = errors.New("chat throttled")
var ErrNoSuchCandidate = errors.New("no candidate at that position")
var ErrStopped = errors.New("client stopped")
var ErrConnectFailed = errors.New("connect failed")

type Options struct {
	Dialer       conn.Dialer
	Conn         conn.Options
	InboxSize    int
	ChatRate     float64 // chat lines per second; 0 disables the limit
	ChatBurst    int
	LogRetention int // 0 keeps every line
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

type Msg interface{ isClientMsg() }

type attach struct {
	conn  *conn.Conn
	reply chan error
}

func (attach) isClientMsg() {}

type connectFailed struct {
	err   error
	reply chan error
}

func (connectFailed) isClientMsg() {}

type disconnect struct{ reply chan error }

func (disconnect) isClientMsg() {}

type submitChat struct {
	text  string
	reply chan error
}

func (submitChat) isClientMsg() {}

type submitVote struct {
	answer  string
	index   int
	byIndex bool
	reply   chan error
}

func (submitVote) isClientMsg() {}

type closeVote struct{ reply chan error }

func (closeVote) isClientMsg() {}

type reopenVote struct{ reply chan error }

func (reopenVote) isClientMsg() {}

type getState struct{ reply chan View }

func (getState) isClientMsg() {}

type LogLine struct {
	Text     string           `json:"text"`
	Severity session.Severity `json:"severity"`
	At       time.Time        `json:"at"`
}

// View is a copy of the loop-owned state, safe to read anywhere.
type View struct {
	Connected bool          `json:"connected"`
	ConnID    string        `json:"connId,omitempty"`
	State     session.State `json:"state"`
	Log       []LogLine     `json:"log"`
}

// Client is the single dispatch surface: one goroutine owns the session state,
// calls the presenter and sends everything the player does.
type Client struct {
	inbox     chan Msg
	presenter Presenter
	dial      conn.Dialer
	connOpts  conn.Options
	log       *zap.Logger
	metrics   *metrics.Metrics
	retention int

	// owned by loop
	state   session.State
	conn    *conn.Conn
	history []LogLine
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, p Presenter, opts Options) *Client {
	if p == nil {
		p = NopPresenter{}
	}
	if opts.Dialer == nil {
		opts.Dialer = conn.NewDialer(protocol.DefaultPort)
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.ChatRate > 0 {
		burst := opts.ChatBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.ChatRate), burst)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	connOpts := opts.Conn
	if connOpts.Logger == nil {
		connOpts.Logger = opts.Logger
	}
	if connOpts.Metrics == nil {
		connOpts.Metrics = opts.Metrics
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		inbox:     make(chan Msg, opts.InboxSize),
		presenter: p,
		dial:      opts.Dialer,
		connOpts:  connOpts,
		log:       opts.Logger.Named("client"),
		metrics:   opts.Metrics,
		retention: opts.LogRetention,
		state:     session.NewState(),
		limiter:   limiter,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go c.loop()
	return c
}

// Connect dials address and starts a fresh session under name. Dialing happens
// on the caller's goroutine so the dispatch loop keeps running meanwhile.
func (c *Client) Connect(ctx context.Context, address, name string) error {
	if v, err := c.State(ctx); err != nil {
		return err
	} else if v.Connected {
		return ErrAlreadyConnected
	}

	cn, err := conn.Dial(ctx, c.dial, address, name, c.connOpts)
	if err != nil {
		c.log.Warn("connect failed", zap.String("address", address), zap.Error(err))
		reply := make(chan error, 1)
		if rerr := c.request(ctx, connectFailed{err: err, reply: reply}, reply); rerr != nil {
			return rerr
		}
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	reply := make(chan error, 1)
	if err := c.request(ctx, attach{conn: cn, reply: reply}, reply); err != nil {
		_ = cn.Close()
		return err
	}
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.request(ctx, disconnect{reply: reply}, reply)
}

// SubmitChat sends text as a chat line. Blank text and a missing connection are
// rejected locally.
func (c *Client) SubmitChat(ctx context.Context, text string) error {
	reply := make(chan error, 1)
	return c.request(ctx, submitChat{text: text, reply: reply}, reply)
}

// SubmitVote answers the pending prompt with one of its candidates.
func (c *Client) SubmitVote(ctx context.Context, answer string) error {
	reply := make(chan error, 1)
	return c.request(ctx, submitVote{answer: answer, reply: reply}, reply)
}

// SubmitVoteIndex answers the pending prompt with its i-th candidate (0-based).
func (c *Client) SubmitVoteIndex(ctx context.Context, i int) error {
	reply := make(chan error, 1)
	return c.request(ctx, submitVote{index: i, byIndex: true, reply: reply}, reply)
}

func (c *Client) CloseVote(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.request(ctx, closeVote{reply: reply}, reply)
}

func (c *Client) ReopenVote(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.request(ctx, reopenVote{reply: reply}, reply)
}

func (c *Client) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case c.inbox <- getState{reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		return View{}, ErrStopped
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		return View{}, ErrStopped
	}
}

// Close stops the loop and drops the connection.
func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// Done is closed when the loop has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) request(ctx context.Context, m Msg, reply <-chan error) error {
	select {
	case c.inbox <- m:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

func (c *Client) loop() {
	defer close(c.done)

	for {
		// nil when disconnected, so the case never fires
		var events <-chan conn.Event
		if c.conn != nil {
			events = c.conn.Events()
		}

		select {
		case <-c.ctx.Done():
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
				c.metrics.Disconnected(false)
			}
			return

		case m := <-c.inbox:
			c.handle(m)

		case ev, ok := <-events:
			if !ok {
				c.conn = nil
				break
			}
			c.handleConnEvent(ev)
		}
	}
}

func (c *Client) handle(m Msg) {
	switch msg := m.(type) {
	case attach:
		if c.conn != nil {
			msg.reply <- ErrAlreadyConnected
			return
		}
		c.conn = msg.conn
		c.state = session.NewState()
		c.metrics.Connected()
		c.log.Info("session started", zap.String("conn_id", msg.conn.ID()))
		c.logLine("Connected to server", session.SeveritySystem)
		msg.reply <- nil

	case connectFailed:
		c.metrics.Disconnected(true)
		c.presenter.OnConnectionLost(msg.err)
		msg.reply <- nil

	case disconnect:
		if c.conn == nil {
			msg.reply <- ErrNotConnected
			return
		}
		_ = c.conn.Close()
		c.conn = nil
		c.metrics.Disconnected(false)
		c.logLine("Disconnected", session.SeveritySystem)
		msg.reply <- nil

	case submitChat:
		msg.reply <- c.chat(msg.text)

	case submitVote:
		msg.reply <- c.vote(msg)

	case closeVote:
		next, err := session.CloseVote(c.state)
		c.state = next
		msg.reply <- err

	case reopenVote:
		events, next, err := session.ReopenVote(c.state)
		c.state = next
		c.present(events)
		msg.reply <- err

	case getState:
		msg.reply <- c.view()
	}
}

func (c *Client) chat(text string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	rec, ok := protocol.NewChat(text)
	if !ok {
		return ErrBlankChat
	}
	if !c.limiter.Allow() {
		c.log.Debug("chat throttled")
		return ErrChatThrottled
	}
	return c.conn.Send(rec)
}

func (c *Client) vote(msg submitVote) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	answer := msg.answer
	if msg.byIndex {
		p := c.state.PendingVote
		if p == nil {
			return session.ErrNoActiveVote
		}
		if msg.index < 0 || msg.index >= len(p.Candidates) {
			return fmt.Errorf("%w: %d", ErrNoSuchCandidate, msg.index+1)
		}
		answer = p.Candidates[msg.index]
	}

	rec, events, next, err := session.Answer(c.state, answer)
	if err != nil {
		return err
	}
	if err := c.conn.Send(rec); err != nil {
		return err
	}
	c.state = next
	c.present(events)
	return nil
}

func (c *Client) handleConnEvent(ev conn.Event) {
	switch e := ev.(type) {
	case conn.Received:
		c.dispatch(e.Message)

	case conn.DecodeFailed:
		c.log.Warn("protocol anomaly: undecodable record", zap.Error(e.Err))

	case conn.Lost:
		c.log.Warn("connection lost", zap.Error(e.Reason))
		c.conn = nil
		c.metrics.Disconnected(true)
		c.presenter.OnConnectionLost(e.Reason)
	}
}

func (c *Client) dispatch(m protocol.Message) {
	events, next, err := session.Apply(c.state, m)
	if err != nil {
		c.log.Debug("ignoring record", zap.String("action", m.Action), zap.Error(err))
		c.metrics.UnknownAction(m.Action)
		return
	}
	c.state = next
	c.present(events)
}

func (c *Client) present(events []session.Event) {
	for _, ev := range events {
		switch ev.Type {
		case session.EvtLog:
			c.logLine(ev.Text, ev.Severity)
		case session.EvtRosterChanged:
			c.presenter.OnRosterChanged(ev.Roster)
		case session.EvtRoleRevealed:
			c.presenter.OnRoleRevealed(ev.Role, ev.Description)
		case session.EvtPhaseChanged:
			c.presenter.OnPhaseChanged(ev.Phase)
		case session.EvtVotePrompted:
			c.presenter.OnVotePrompt(*ev.Prompt)
		case session.EvtDied:
			c.presenter.OnDeath()
		case session.EvtGameEnded:
			c.presenter.OnGameEnd(ev.Winner)
		case session.EvtPromptDropped:
			c.log.Debug("vote prompt dropped: player is dead", zap.String("instruct", ev.Text))
			c.metrics.PromptDropped()
		case session.EvtAnomaly:
			c.log.Warn("protocol anomaly", zap.String("detail", ev.Text))
			c.metrics.Anomaly()
		}
	}
}

func (c *Client) logLine(text string, sev session.Severity) {
	c.history = append(c.history, LogLine{Text: text, Severity: sev, At: time.Now()})
	if c.retention > 0 && len(c.history) > c.retention {
		c.history = slices.Clone(c.history[len(c.history)-c.retention:])
	}
	c.presenter.OnLog(text, sev)
}

func (c *Client) view() View {
	v := View{
		Connected: c.conn != nil,
		State:     c.state,
		Log:       slices.Clone(c.history),
	}
	v.State.Roster = slices.Clone(c.state.Roster)
	if c.conn != nil {
		v.ConnID = c.conn.ID()
	}
	return v
}
