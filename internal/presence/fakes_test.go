package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/profilecard/presence/internal/clock"
	"github.com/profilecard/presence/internal/lanyard"
)

const (
	testUserID = "94490510688792576"
	waitFor    = 2 * time.Second
	quietFor   = 50 * time.Millisecond
)

var errPipeClosed = errors.New("pipe closed")

// pipeConn is an in-memory gateway connection. The test plays the server by
// pushing frames into in and reading client writes from out.
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.closed:
		return nil, errPipeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-p.closed:
		return errPipeClosed
	default:
	}

	select {
	case p.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *pipeConn) send(frame string) { p.in <- []byte(frame) }

// fakeDialer hands out a fresh pipeConn per dial and publishes it on dialed.
type fakeDialer struct {
	dialed   chan *pipeConn
	started  chan struct{}
	failNext atomic.Int32
	dials    atomic.Int32
	hold     chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		dialed:  make(chan *pipeConn, 16),
		started: make(chan struct{}, 16),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.dials.Add(1)
	d.started <- struct{}{}

	if d.hold != nil {
		select {
		case <-d.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if d.failNext.Load() > 0 {
		d.failNext.Add(-1)
		return nil, errors.New("connection refused")
	}

	conn := newPipeConn()
	d.dialed <- conn

	return conn, nil
}

type fakeLookup struct {
	result  *lanyard.LookupResult
	err     error
	release chan struct{}
}

func (f *fakeLookup) Lookup(ctx context.Context, _ string) (*lanyard.LookupResult, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return f.result, f.err
}

type harness struct {
	t      *testing.T
	clk    *clock.Fake
	dialer *fakeDialer
	client *Client
	events chan Event
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness starts a client on a fake clock and copies its updates into a
// buffered channel so the loop never waits on the test.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	return startHarness(t, newFakeDialer(), opts...)
}

func startHarness(t *testing.T, dialer *fakeDialer, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		clk:    clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		dialer: dialer,
		events: make(chan Event, 256),
	}

	base := []Option{WithDialer(h.dialer), WithClock(h.clk), WithLogger(discardLogger())}
	h.client = New(append(base, opts...)...)

	require.NoError(t, h.client.Start(context.Background(), testUserID))
	t.Cleanup(h.client.Stop)

	updates := h.client.Updates()

	go func() {
		for ev := range updates {
			h.events <- ev
		}

		close(h.events)
	}()

	return h
}

func (h *harness) conn() *pipeConn {
	h.t.Helper()

	select {
	case c := <-h.dialer.dialed:
		return c
	case <-time.After(waitFor):
		h.t.Fatal("timed out waiting for dial")
		return nil
	}
}

func (h *harness) noDial() {
	h.t.Helper()

	select {
	case <-h.dialer.dialed:
		h.t.Fatal("unexpected dial")
	case <-time.After(quietFor):
	}
}

func (h *harness) next() Event {
	h.t.Helper()

	select {
	case ev, ok := <-h.events:
		if !ok {
			h.t.Fatal("updates closed")
		}

		return ev
	case <-time.After(waitFor):
		h.t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// nextOf skips events until one of kind arrives.
func (h *harness) nextOf(kind EventKind) Event {
	h.t.Helper()

	for {
		if ev := h.next(); ev.Kind == kind {
			return ev
		}
	}
}

func (h *harness) waitState(want State) {
	h.t.Helper()

	for {
		ev := h.nextOf(EventState)
		if ev.State == want {
			return
		}
	}
}

// noSnapshot fails if a snapshot arrives within the quiet window.
func (h *harness) noSnapshot() {
	h.t.Helper()

	deadline := time.After(quietFor)

	for {
		select {
		case ev, ok := <-h.events:
			if !ok {
				return
			}

			if ev.Kind == EventSnapshot {
				h.t.Fatalf("unexpected snapshot: %+v", ev.Snapshot)
			}
		case <-deadline:
			return
		}
	}
}

// subscribe answers the dial with hello and consumes the subscribe frame.
func (h *harness) subscribe(c *pipeConn, intervalMS int) {
	h.t.Helper()

	c.send(helloFrame(intervalMS))
	require.JSONEq(h.t, `{"op":2,"d":{"subscribe_to_id":"`+testUserID+`"}}`, string(written(h.t, c)))
	h.waitState(Subscribed)
}

func written(t *testing.T, c *pipeConn) []byte {
	t.Helper()

	select {
	case data := <-c.out:
		return data
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for client write")
		return nil
	}
}

func nothingWritten(t *testing.T, c *pipeConn) {
	t.Helper()

	select {
	case data := <-c.out:
		t.Fatalf("unexpected write %s", data)
	case <-time.After(quietFor):
	}
}

func helloFrame(intervalMS int) string {
	return `{"op":1,"d":{"heartbeat_interval":` + strconv.Itoa(intervalMS) + `}}`
}

func updateFrame(eventType, status string) string {
	return `{"op":0,"t":"` + eventType + `","d":{"discord_user":{"id":"` + testUserID + `","username":"phineas"},"discord_status":"` + status + `","activities":[]}}`
}

func nestedFrame(eventType, status string) string {
	return `{"op":0,"t":"` + eventType + `","d":{"data":{"discord_user":{"id":"` + testUserID + `","username":"phineas"},"discord_status":"` + status + `"}}}`
}
