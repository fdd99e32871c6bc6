// Package connection owns the single bidirectional link to the emulator
// server: dialing, the receive loop, and command sends.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"trs80term/pkg/protocol"
)

// ErrAlreadyOpen is returned by Connect on an open Manager.
var ErrAlreadyOpen = errors.New("connection already open")

const (
	// DefaultWriteTimeout bounds one command send.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultFlushTimeout bounds how long a local Close keeps writing
	// commands that were queued before it.
	DefaultFlushTimeout = time.Second
	// DefaultQueueSize is the number of commands waiting for the writer.
	DefaultQueueSize = 64
)

// State is the connection lifecycle state.
type State int

const (
	Closed State = iota
	Open
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Transport is a message-oriented link. Read returns one whole message.
// Read and Write are each called from a single goroutine of their own.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Close() error
}

// DialFunc opens a new Transport.
type DialFunc func(ctx context.Context) (Transport, error)

// Handler consumes one inbound message. A returned error is logged and the
// message is dropped; the connection stays open.
type Handler func(payload []byte) error

// Direction tells a Tap which way a message travelled.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// String returns the string representation of Direction
func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Options configures a Manager.
type Options struct {
	// Handler receives inbound messages in arrival order.
	Handler Handler
	// OnClose runs once per opened connection when it ends. err is nil for
	// a local Close.
	OnClose func(err error)
	// Tap sees every message that crosses the link.
	Tap func(dir Direction, payload []byte)

	Logger       *slog.Logger
	WriteTimeout time.Duration
	FlushTimeout time.Duration
	QueueSize    int
}

// Manager is the Closed/Open state machine around one Transport at a time.
// It never reconnects on its own; see Reconnector.
//
// Each open link has a receive goroutine and a writer goroutine. Send only
// queues, so a stalled transport never holds up the caller or Close.
type Manager struct {
	dial    DialFunc
	options Options
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	link  *link
	done  chan struct{}

	received atomic.Int64
	sent     atomic.Int64
	dropped  atomic.Int64
}

// outbound is one encoded command waiting for the writer.
type outbound struct {
	cmd     string
	payload []byte
}

// link is the per-connection state shared by the two goroutines.
type link struct {
	transport Transport
	queue     chan outbound

	readCtx     context.Context
	readCancel  context.CancelFunc
	writeCtx    context.Context
	writeCancel context.CancelFunc
}

// NewManager creates a closed Manager that opens links with dial.
func NewManager(dial DialFunc, options Options) *Manager {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}
	if options.FlushTimeout <= 0 {
		options.FlushTimeout = DefaultFlushTimeout
	}
	if options.QueueSize <= 0 {
		options.QueueSize = DefaultQueueSize
	}
	if options.Handler == nil {
		options.Handler = func([]byte) error { return nil }
	}
	return &Manager{
		dial:    dial,
		options: options,
		logger:  logger,
		state:   Closed,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// current reports whether l is still the open link
func (m *Manager) current(l *link) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.link == l
}

// Connect dials the server and starts the receive and write loops. ctx
// bounds the dial only. No handshake is sent; the server starts streaming
// on its own.
func (m *Manager) Connect(ctx context.Context) error {
	if m.State() == Open {
		return ErrAlreadyOpen
	}

	transport, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	m.mu.Lock()
	if m.state == Open {
		m.mu.Unlock()
		transport.Close()
		return ErrAlreadyOpen
	}
	l := &link{
		transport: transport,
		queue:     make(chan outbound, m.options.QueueSize),
	}
	l.readCtx, l.readCancel = context.WithCancel(context.Background())
	l.writeCtx, l.writeCancel = context.WithCancel(context.Background())
	done := make(chan struct{})
	m.state = Open
	m.link = l
	m.done = done
	m.mu.Unlock()

	m.logger.Info("connection open")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.receive(l)
	}()
	go func() {
		defer wg.Done()
		m.write(l)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()
	return nil
}

func (m *Manager) receive(l *link) {
	for {
		payload, err := l.transport.Read(l.readCtx)
		if err != nil {
			m.finish(l, err)
			return
		}

		// A local Close stops delivery at once, even while queued
		// commands are still being flushed.
		if !m.current(l) {
			continue
		}

		m.received.Add(1)
		if m.options.Tap != nil {
			m.options.Tap(Inbound, payload)
		}
		if err := m.options.Handler(payload); err != nil {
			m.logger.Warn("dropping inbound message", "error", err, "bytes", len(payload))
		}
	}
}

// write drains the queue in order until finish closes it, then closes the
// transport.
func (m *Manager) write(l *link) {
	defer func() {
		l.writeCancel()
		l.readCancel()
		l.transport.Close()
	}()

	for out := range l.queue {
		if l.writeCtx.Err() != nil {
			m.dropped.Add(1)
			continue
		}

		ctx, cancel := context.WithTimeout(l.writeCtx, m.options.WriteTimeout)
		err := l.transport.Write(ctx, out.payload)
		cancel()
		if err != nil {
			m.dropped.Add(1)
			m.finish(l, fmt.Errorf("send %s: %w", out.cmd, err))
			continue
		}

		m.sent.Add(1)
		if m.options.Tap != nil {
			m.options.Tap(Outbound, out.payload)
		}
	}
}

// finish moves l to Closed if it is still the current link. It reports
// whether this call did the transition. A local close (nil cause) lets the
// writer flush queued commands for up to FlushTimeout; any other cause
// abandons them.
func (m *Manager) finish(l *link, cause error) bool {
	m.mu.Lock()
	if m.link != l {
		m.mu.Unlock()
		return false
	}
	m.state = Closed
	m.link = nil
	close(l.queue)
	m.mu.Unlock()

	if cause == nil {
		time.AfterFunc(m.options.FlushTimeout, l.writeCancel)
	} else {
		l.writeCancel()
		l.readCancel()
	}

	switch {
	case cause == nil:
		m.logger.Info("connection closed")
	case IsExpectedCloseError(cause):
		m.logger.Info("connection closed by server", "reason", cause)
	default:
		m.logger.Error("connection lost", "error", cause)
	}

	if m.options.OnClose != nil {
		m.options.OnClose(cause)
	}
	return true
}

// Close ends the current connection and returns without waiting for the
// transport; Wait does that. Closing a closed Manager does nothing.
func (m *Manager) Close() error {
	m.mu.Lock()
	l := m.link
	m.mu.Unlock()

	if l == nil {
		return nil
	}
	m.finish(l, nil)
	return nil
}

// Wait blocks until both loops of the current or most recent connection
// have exited and its transport is closed.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Send encodes cmd and queues it for the writer; it never waits on the
// transport. While Closed, or when the queue is full, the command is
// dropped and Send returns nil. Nothing is retried. A failed write closes
// the connection.
func (m *Manager) Send(cmd protocol.Command) error {
	payload, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Open {
		m.dropped.Add(1)
		m.logger.Debug("dropping command while closed", "cmd", cmd.Cmd())
		return nil
	}

	select {
	case m.link.queue <- outbound{cmd: cmd.Cmd(), payload: payload}:
	default:
		m.dropped.Add(1)
		m.logger.Warn("send queue full, dropping command", "cmd", cmd.Cmd())
	}
	return nil
}

// Stats returns message counters since the Manager was created.
func (m *Manager) Stats() (received, sent, dropped int64) {
	return m.received.Load(), m.sent.Load(), m.dropped.Load()
}
