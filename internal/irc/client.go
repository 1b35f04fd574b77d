// Package irc implements the per-server connection engine: the socket
// lifecycle state machine, the registration and capability handshake, the
// keepalive and reconnect policy, and the dispatcher that applies inbound
// messages to the state store and notifies observers.
package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/whisprer/hexchat/internal/config"
	"github.com/whisprer/hexchat/internal/proto"
	"github.com/whisprer/hexchat/internal/state"
)

var (
	ErrAlreadyRunning = errors.New("client is already running")
	ErrClosed         = errors.New("client is closed")
	ErrQueueFull      = errors.New("send queue is full")
)

// sendQueueLen bounds the outbound FIFO. Queued messages are dropped, not
// resent, when the connection closes.
const sendQueueLen = 256

// keepaliveTick is how often the idle window and PONG grace are checked.
const keepaliveTick = 10 * time.Second

// Client is one server connection. All protocol processing happens on the
// goroutine that called Run: message decode, state mutation and observer
// notification run one message at a time in arrival order, so observers can
// rely on that ordering and the state store needs no locks.
type Client struct {
	profile *config.Profile
	log     *log.Logger
	metrics *Metrics

	obsMu     sync.RWMutex
	observers []Observer

	sendq     chan *proto.Message
	closed    chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	stMirror  atomic.Int32
	quitMsg   atomic.Value // string

	mu   sync.RWMutex // guards nick for external readers
	nick string

	// Owned by the Run goroutine.
	st         ConnState
	conn       net.Conn
	store      *state.Store
	prefixes   state.PrefixTable
	chantypes  string
	limits     proto.Limits
	registered bool
	nickTried  int

	availableCaps map[string]string
	enabledCaps   map[string]struct{}
	capReqSent    bool
	capEndSent    bool
	sasl          saslClient

	lastTraffic time.Time
	pingSent    time.Time
	pingToken   string
	pingPending bool
	tick        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client for one connection profile. Nothing touches the
// network until Run.
func NewClient(profile *config.Profile, opts ...Option) *Client {
	profile.ApplyDefaults()
	c := &Client{
		profile:   profile,
		log:       log.New(os.Stderr, "", log.LstdFlags),
		sendq:     make(chan *proto.Message, sendQueueLen),
		closed:    make(chan struct{}),
		st:        StateIdle,
		store:     state.NewStore(state.CasemapRFC1459),
		prefixes:  state.DefaultPrefixes,
		chantypes: "#&",
		limits:    proto.Limits{Line: proto.MaxLineLen},
		tick:      keepaliveTick,
		nick:      profile.Nick,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Network returns the profile's network label.
func (c *Client) Network() string { return c.profile.Network }

// State returns the connection state as last published. Safe from any
// goroutine.
func (c *Client) State() ConnState { return ConnState(c.stMirror.Load()) }

// CurrentNick returns the nick the server currently knows us by.
func (c *Client) CurrentNick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nick
}

// Store exposes the state store. It is owned by the Run goroutine; only
// observers called from it may read it without racing.
func (c *Client) Store() *state.Store { return c.store }

// Subscribe registers an observer. Observers receive every notification in
// arrival order on the client's goroutine.
func (c *Client) Subscribe(o Observer) {
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

// Send enqueues an outbound message. The queue drains FIFO, and only while
// the connection is in the Connected state.
func (c *Client) Send(m *proto.Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.sendq <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Quit sends a QUIT with the given message and shuts the client down.
func (c *Client) Quit(message string) {
	c.quitMsg.Store(message)
	c.Close()
}

// Close shuts the client down: pending socket operations and timers are
// cancelled and queued messages are dropped. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Run drives the connection until Close, context cancellation, or policy
// exhaustion. It blocks; one goroutine per server.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	// Close must also unblock an in-flight resolve, dial or handshake, so
	// the phase functions run under a context tied to the closed channel.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-runCtx.Done():
		}
	}()

	b := backoff{
		initial: c.profile.Reconnect.InitialDelay.Std(),
		max:     c.profile.Reconnect.MaxDelay.Std(),
		jitter:  c.profile.Reconnect.Jitter,
	}
	attempt := 0
	for {
		err := c.runAttempt(runCtx)
		if c.registered {
			attempt = 0
		}
		if c.isClosed() || ctx.Err() != nil {
			c.setState(StateClosed)
			return nil
		}
		if err != nil {
			c.log.Printf("[%s] connection lost: %v", c.profile.Network, err)
			c.notify(Event{Kind: EventError, Severity: SeverityError, Err: err})
		}
		if !c.profile.Reconnect.Enabled {
			c.setState(StateClosed)
			return err
		}
		attempt++
		if max := c.profile.Reconnect.MaxAttempts; max > 0 && attempt > max {
			c.setState(StateClosed)
			return fmt.Errorf("giving up after %d attempts: %w", max, err)
		}
		c.setState(StateReconnecting)
		c.metrics.Reconnect()
		delay := b.delay(attempt)
		c.log.Printf("[%s] reconnecting in %s (attempt %d)", c.profile.Network, delay, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setState(StateClosed)
			return nil
		case <-c.closed:
			c.setState(StateClosed)
			return nil
		}
	}
}

// runAttempt performs one full connection attempt: resolve, connect,
// optional TLS, registration, then steady-state processing until an error
// or shutdown.
func (c *Client) runAttempt(ctx context.Context) error {
	c.resetAttempt()

	c.setState(StateResolving)
	addrs, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	c.setState(StateConnecting)
	conn, err := c.connect(ctx, addrs)
	if err != nil {
		return err
	}

	if c.profile.TLS {
		c.setState(StateTLSHandshake)
		conn, err = c.handshake(ctx, conn)
		if err != nil {
			return err
		}
	}
	c.conn = conn

	lines := make(chan string, 32)
	readErr := make(chan error, 1)
	go readLoop(conn, lines, readErr)
	readerDone := false
	defer func() {
		conn.Close()
		c.conn = nil
		// Unblock the reader before leaving so it terminates promptly. Once
		// readErr has delivered, the reader has already exited and there is
		// nothing left to drain.
		for !readerDone {
			select {
			case <-lines:
			case <-readErr:
				readerDone = true
			}
		}
	}()

	c.setState(StateRegistering)
	if err := c.register(); err != nil {
		return err
	}

	keepalive := time.NewTicker(c.tick)
	defer keepalive.Stop()
	c.lastTraffic = time.Now()

	for {
		// The send queue drains only while Connected; a nil channel never
		// selects.
		var sendq chan *proto.Message
		if c.st == StateConnected {
			sendq = c.sendq
		}
		select {
		case <-ctx.Done():
			// Close cancels this context too; it still gets a clean QUIT.
			if c.isClosed() {
				c.sendQuit()
				return nil
			}
			return ctx.Err()
		case <-c.closed:
			c.sendQuit()
			return nil
		case err := <-readErr:
			readerDone = true
			return err
		case line := <-lines:
			c.lastTraffic = time.Now()
			c.metrics.LineReceived()
			if err := c.handleLine(line); err != nil {
				return err
			}
		case m := <-sendq:
			if err := c.send(m); err != nil {
				return err
			}
		case <-keepalive.C:
			if err := c.checkKeepalive(); err != nil {
				return err
			}
		}
	}
}

// resetAttempt restores per-attempt state before (re)entering Resolving.
func (c *Client) resetAttempt() {
	c.store.Clear()
	c.registered = false
	c.nickTried = 0
	c.setNick(c.profile.Nick)
	c.availableCaps = make(map[string]string)
	c.enabledCaps = make(map[string]struct{})
	c.capReqSent = false
	c.capEndSent = false
	c.sasl = nil
	c.limits = proto.Limits{Line: proto.MaxLineLen}
	c.pingPending = false
	c.pingToken = ""
}

// register opens the handshake: capability discovery, optional password,
// then NICK/USER. Completion is driven by the dispatcher (001 or a fatal
// numeric).
func (c *Client) register() error {
	if err := c.send(proto.New(proto.CmdCap, "LS", "302")); err != nil {
		return err
	}
	if c.profile.ServerPass != "" {
		if err := c.send(proto.New(proto.CmdPass, c.profile.ServerPass)); err != nil {
			return err
		}
	}
	if err := c.send(proto.New(proto.CmdNick, c.CurrentNick())); err != nil {
		return err
	}
	return c.send(proto.New(proto.CmdUser, c.profile.Username, "0", "*", c.profile.Realname))
}

// send encodes and writes one message directly. Encode failures are local:
// the message is dropped with a notification and the connection survives.
func (c *Client) send(m *proto.Message) error {
	data, err := m.Bytes(c.limits)
	if err != nil {
		c.notify(Event{Kind: EventError, Severity: SeverityWarning, Err: err})
		return nil
	}
	return c.writeLine(data)
}

func (c *Client) sendQuit() {
	msg := "Leaving"
	if s, ok := c.quitMsg.Load().(string); ok && s != "" {
		msg = s
	}
	c.send(proto.New(proto.CmdQuit, msg))
}

// checkKeepalive issues a PING once the idle window elapses and declares
// the connection dead when the PONG misses its grace period.
func (c *Client) checkKeepalive() error {
	if c.st != StateConnected {
		return nil
	}
	now := time.Now()
	if c.pingPending {
		if now.Sub(c.pingSent) > c.profile.Timeouts.PingGrace.Std() {
			return fmt.Errorf("ping timeout: no PONG within %s", c.profile.Timeouts.PingGrace)
		}
		return nil
	}
	if now.Sub(c.lastTraffic) >= c.profile.Timeouts.PingIdle.Std() {
		c.pingPending = true
		c.pingSent = now
		c.pingToken = strconv.FormatInt(now.UnixNano(), 10)
		return c.send(proto.New(proto.CmdPing, c.pingToken))
	}
	return nil
}

// setState publishes a lifecycle transition. An invalid transition is a
// defect and panics.
func (c *Client) setState(to ConnState) {
	if c.st == to {
		return
	}
	if !validTransition(c.st, to) {
		panic(fmt.Sprintf("irc: invalid state transition %s -> %s", c.st, to))
	}
	c.st = to
	c.stMirror.Store(int32(to))
	c.metrics.State(to)
	c.notify(Event{Kind: EventStateChanged, State: to})
}

func (c *Client) setNick(nick string) {
	c.mu.Lock()
	c.nick = nick
	c.mu.Unlock()
}

// notify delivers one event to every observer, in subscription order.
func (c *Client) notify(ev Event) {
	ev.Server = c.profile.Network
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.obsMu.RLock()
	obs := c.observers
	c.obsMu.RUnlock()
	for _, o := range obs {
		o.Notify(ev)
	}
}

// readLoop feeds raw lines to the processing loop. Socket reads are the
// only suspension point; everything else happens on the Run goroutine.
func readLoop(conn net.Conn, lines chan<- string, readErr chan<- error) {
	r := bufio.NewReaderSize(conn, proto.MaxTagsLen+proto.MaxLineLen)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines <- line
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}
