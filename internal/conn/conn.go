package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/werewolf-client/internal/metrics"
	"github.com/DoyleJ11/werewolf-client/internal/protocol"
)

var ErrConnectionClosed = errors.New("connection closed")
var ErrClosedByPeer = errors.New("connection closed by server")

// Event is what the receive loop hands to the consumer, in arrival order.
type Event interface{ isConnEvent() }

type Received struct{ Message protocol.Message }

func (Received) isConnEvent() {}

type DecodeFailed struct{ Err error }

func (DecodeFailed) isConnEvent() {}

// Lost is always the last event before the channel closes, unless the
// consumer closed the connection itself.
type Lost struct{ Reason error }

func (Lost) isConnEvent() {}

type Options struct {
	ReadBuffer     int
	MaxRecordBytes int
	EventBuffer    int
	OutboxSize     int
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = 2048
	}
	if o.MaxRecordBytes <= 0 {
		o.MaxRecordBytes = protocol.DefaultMaxRecordBytes
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Conn is one live session stream. It is not reused once closed.
type Conn struct {
	id      string
	nc      net.Conn
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics

	events chan Event
	outbox chan []byte

	closed    chan struct{} // stream is dead; sends fail
	closeOnce sync.Once
	stop      chan struct{} // consumer stopped listening
	stopOnce  sync.Once

	mu     sync.Mutex
	reason error
}

// Dial opens address, queues the join handshake and starts the receive loop.
func Dial(ctx context.Context, dial Dialer, address, name string, opts Options) (*Conn, error) {
	nc, err := dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}
	return Start(nc, name, opts)
}

// Start runs a session over an already established stream.
func Start(nc net.Conn, name string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	hello, err := protocol.Encode(protocol.NewJoin(name))
	if err != nil {
		_ = nc.Close()
		return nil, err
	}

	id := uuid.NewString()
	c := &Conn{
		id:      id,
		nc:      nc,
		opts:    opts,
		log:     opts.Logger.Named("conn").With(zap.String("conn_id", id)),
		metrics: opts.Metrics,
		events:  make(chan Event, opts.EventBuffer),
		outbox:  make(chan []byte, opts.OutboxSize),
		closed:  make(chan struct{}),
		stop:    make(chan struct{}),
	}

	// The handshake is first in the outbox, so it precedes every other send.
	c.outbox <- hello
	c.metrics.Sent(protocol.ActionJoin)

	go c.writeLoop()
	go c.readLoop()

	c.log.Info("connected", zap.Stringer("remote", nc.RemoteAddr()))
	return c, nil
}

func (c *Conn) ID() string { return c.id }

// Events yields decoded records and the final Lost event.
func (c *Conn) Events() <-chan Event { return c.events }

// Done is closed once the stream is dead.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Err reports why the connection closed, or nil while it is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Send queues rec for the writer. It may be called from any goroutine.
func (c *Conn) Send(rec protocol.Record) error {
	b, err := protocol.Encode(rec)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.outbox <- b:
	case <-c.closed:
		return ErrConnectionClosed
	}
	// select picks at random when both cases are ready; a record queued
	// after the close will never be written.
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	c.metrics.Sent(rec.ActionName())
	return nil
}

// Close tears the stream down. No Lost event follows a Close.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.shutdown(ErrConnectionClosed)
	return nil
}

// shutdown records the first reason and closes the stream once. It returns the
// reason that won.
func (c *Conn) shutdown(reason error) error {
	c.mu.Lock()
	if c.reason == nil {
		c.reason = reason
	}
	reason = c.reason
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.closed)
		if err := c.nc.Close(); err != nil {
			c.log.Debug("close stream", zap.Error(err))
		}
	})
	return reason
}

func (c *Conn) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.stop:
		return false
	}
}

func (c *Conn) readLoop() {
	defer close(c.events)

	dec := protocol.NewDecoder(c.opts.MaxRecordBytes)
	buf := make([]byte, c.opts.ReadBuffer)

	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			for _, r := range dec.Next(buf[:n]) {
				var ev Event
				if r.Err != nil {
					c.log.Warn("discarding record", zap.Error(r.Err))
					c.metrics.DecodeError()
					ev = DecodeFailed{Err: r.Err}
				} else {
					c.metrics.Received(r.Message.Action)
					ev = Received{Message: r.Message}
				}
				if !c.emit(ev) {
					return
				}
			}
		}
		if err != nil {
			var reason error
			if errors.Is(err, io.EOF) {
				reason = ErrClosedByPeer
			} else {
				reason = fmt.Errorf("read: %w", err)
			}
			reason = c.shutdown(reason)
			c.log.Info("receive loop stopped", zap.Error(reason))
			c.emit(Lost{Reason: reason})
			return
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case b := <-c.outbox:
			if _, err := c.nc.Write(b); err != nil {
				// Closing the stream wakes the reader, which reports the loss.
				c.shutdown(fmt.Errorf("write: %w", err))
				return
			}
		case <-c.closed:
			return
		}
	}
}
