// Package presence keeps a live view of one Discord user's presence by holding
// a Lanyard gateway connection open, reconnecting forever on loss.
//
// A Client runs a single event loop per Start. Every helper goroutine (dial,
// connection reader, timers, lookup) reports back to the loop tagged with the
// connection epoch it belongs to; the loop ignores anything from an older
// epoch, so a superseded connection can never emit.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/profilecard/presence/internal/clock"
	"github.com/profilecard/presence/internal/lanyard"
)

const (
	// DefaultReconnectDelay is the fixed wait before redialing.
	DefaultReconnectDelay = 2 * time.Second
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second
)

var (
	// ErrAlreadyStarted is returned by Start on a running client.
	ErrAlreadyStarted = errors.New("presence client already started")
	// ErrEmptyUserID is returned by Start without a user id.
	ErrEmptyUserID = errors.New("user id is empty")
)

// State is the gateway connection state.
type State int32

// Connection states.
const (
	Disconnected State = iota
	Connecting
	AwaitingHello
	Subscribed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingHello:
		return "awaiting-hello"
	case Subscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// EventKind tags an Event.
type EventKind int

// Event kinds.
const (
	EventSnapshot EventKind = iota + 1
	EventTracked
	EventState
)

// Source says where a snapshot came from.
type Source string

// Snapshot sources.
const (
	SourceGateway Source = "gateway"
	SourceLookup  Source = "lookup"
)

// Event is one item of the Updates stream.
type Event struct {
	Kind EventKind

	// EventSnapshot
	Snapshot *lanyard.Snapshot
	Source   Source

	// EventTracked
	Tracked bool
	Reason  string

	// EventState
	State State
}

// Lookuper performs the one-shot tracking check.
type Lookuper interface {
	Lookup(ctx context.Context, userID string) (*lanyard.LookupResult, error)
}

// Option configures a Client.
type Option func(*Client)

// WithDialer sets the gateway dialer.
func WithDialer(d Dialer) Option { return func(c *Client) { c.dialer = d } }

// WithGatewayURL sets the gateway endpoint.
func WithGatewayURL(url string) Option { return func(c *Client) { c.gatewayURL = url } }

// WithLookup enables the one-shot tracking check.
func WithLookup(l Lookuper) Option { return func(c *Client) { c.lookup = l } }

// WithClock replaces the clock used for heartbeats and reconnects.
func WithClock(clk clock.Clock) Option { return func(c *Client) { c.clock = clk } }

// WithReconnectDelay sets the wait between a lost connection and the redial.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithHeartbeatFallback sets the keepalive period used when hello has none.
func WithHeartbeatFallback(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.heartbeatFallback = d
		}
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records activity into m.
func WithMetrics(m *Metrics) Option { return func(c *Client) { c.metrics = m } }

// Client maintains a best-effort live presence view of one user.
type Client struct {
	dialer            Dialer
	gatewayURL        string
	lookup            Lookuper
	clock             clock.Clock
	reconnectDelay    time.Duration
	heartbeatFallback time.Duration
	writeTimeout      time.Duration
	logger            *slog.Logger
	metrics           *Metrics

	mu    sync.Mutex
	run   *run
	state atomic.Int32
}

type run struct {
	cancel  context.CancelFunc
	done    chan struct{}
	updates chan Event
}

// New creates a Client. Without options it dials the public Lanyard gateway
// over a websocket and skips the tracking lookup.
func New(opts ...Option) *Client {
	c := &Client{
		dialer:            WebsocketDialer{},
		gatewayURL:        lanyard.DefaultGatewayURL,
		clock:             clock.Real(),
		reconnectDelay:    DefaultReconnectDelay,
		heartbeatFallback: lanyard.DefaultHeartbeatInterval,
		writeTimeout:      DefaultWriteTimeout,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins the tracking lookup and the gateway connection for userID and
// returns immediately. Results arrive on Updates. Cancelling ctx ends the run
// like Stop, but Stop must still be called before the client is reused.
func (c *Client) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	r := &run{
		cancel:  cancel,
		done:    make(chan struct{}),
		updates: make(chan Event),
	}
	c.run = r

	l := &loop{
		c:       c,
		userID:  userID,
		ctx:     runCtx,
		events:  make(chan any, 64),
		updates: r.updates,
		log:     c.logger.With(slog.String("component", "presence"), slog.String("user_id", userID)),
	}

	go func() {
		defer close(r.done)
		l.run()
	}()

	return nil
}

// Updates returns the event stream of the current run, or nil when the
// client is not started. The channel is closed when the run ends.
func (c *Client) Updates() <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil
	}

	return c.run.updates
}

// Stop ends the current run. When it returns the connection is closed, no
// timers remain armed and no further events will be delivered. It is safe to
// call in any state, repeatedly, and from the goroutine reading Updates.
func (c *Client) Stop() {
	c.mu.Lock()
	r := c.run
	c.run = nil
	c.mu.Unlock()

	if r == nil {
		return
	}

	r.cancel()
	<-r.done
}

// State returns the most recent connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}
