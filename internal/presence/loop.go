package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/profilecard/presence/internal/clock"
	"github.com/profilecard/presence/internal/lanyard"
)

type dialedEvent struct {
	epoch uint64
	conn  Conn
	err   error
}

type frameEvent struct {
	epoch uint64
	data  []byte
}

type closedEvent struct {
	epoch uint64
	err   error
}

type heartbeatEvent struct {
	epoch uint64
	gen   uint64
}

type reconnectEvent struct {
	epoch uint64
}

type lookupEvent struct {
	result *lanyard.LookupResult
	err    error
}

// timerHandle forwards one timer firing into the loop until cancelled.
type timerHandle struct {
	timer clock.Timer
	stop  chan struct{}
}

func (h *timerHandle) cancel() {
	h.timer.Stop()
	close(h.stop)
}

// loop owns all mutable state of one run. Only its goroutine touches the
// fields below events.
type loop struct {
	c       *Client
	userID  string
	ctx     context.Context
	events  chan any
	updates chan Event
	log     *slog.Logger

	epoch      uint64
	state      State
	conn       Conn
	connCtx    context.Context
	connCancel context.CancelFunc

	heartbeat   *timerHandle
	hbGen       uint64
	hbInterval  time.Duration
	reconnect   *timerHandle
	sawSnapshot bool
}

func (l *loop) run() {
	defer l.shutdown()

	if l.c.lookup != nil {
		go l.lookupOnce()
	}

	l.connect()

	for {
		select {
		case <-l.ctx.Done():
			return
		case ev := <-l.events:
			if l.ctx.Err() != nil {
				return
			}

			l.handle(ev)
		}
	}
}

func (l *loop) handle(ev any) {
	switch ev := ev.(type) {
	case dialedEvent:
		l.onDialed(ev)
	case frameEvent:
		if ev.epoch == l.epoch {
			l.onFrame(ev.data)
		}
	case closedEvent:
		if ev.epoch == l.epoch {
			l.log.Debug("gateway connection lost", slog.String("error", errString(ev.err)))
			l.disconnected()
		}
	case heartbeatEvent:
		l.onHeartbeat(ev)
	case reconnectEvent:
		if ev.epoch == l.epoch {
			l.reconnect = nil
			l.connect()
		}
	case lookupEvent:
		l.onLookup(ev)
	}
}

// post hands an event to the loop. It reports false once the run is over.
func (l *loop) post(ev any) bool {
	select {
	case l.events <- ev:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *loop) emit(ev Event) {
	if l.ctx.Err() != nil {
		return
	}

	select {
	case l.updates <- ev:
	case <-l.ctx.Done():
	}
}

func (l *loop) setState(s State) {
	if l.state == s {
		return
	}

	l.log.Debug("presence state changed", slog.String("from", l.state.String()), slog.String("to", s.String()))

	l.state = s
	l.c.state.Store(int32(s))
	l.c.metrics.setState(s)
	l.emit(Event{Kind: EventState, State: s})
}

func (l *loop) connect() {
	l.epoch++
	epoch := l.epoch

	connCtx, cancel := context.WithCancel(l.ctx)
	l.connCtx = connCtx
	l.connCancel = cancel

	go func() {
		conn, err := l.c.dialer.Dial(connCtx, l.c.gatewayURL)
		if err == nil {
			// Bind the connection to its context so nothing outlives Stop.
			context.AfterFunc(connCtx, func() { _ = conn.Close() })
		}

		l.post(dialedEvent{epoch: epoch, conn: conn, err: err})
	}()

	l.setState(Connecting)
}

func (l *loop) onDialed(ev dialedEvent) {
	if ev.epoch != l.epoch {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}

		return
	}

	if ev.err != nil {
		l.log.Debug("gateway dial failed", slog.String("error", ev.err.Error()))
		l.disconnected()

		return
	}

	l.conn = ev.conn
	l.log.Debug("gateway connected", slog.Uint64("epoch", ev.epoch))

	go l.read(l.connCtx, ev.epoch, ev.conn)
}

func (l *loop) read(ctx context.Context, epoch uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			l.post(closedEvent{epoch: epoch, err: err})
			return
		}

		if !l.post(frameEvent{epoch: epoch, data: data}) {
			return
		}
	}
}

func (l *loop) onFrame(data []byte) {
	frame, err := lanyard.DecodeFrame(data)
	if err != nil {
		l.c.metrics.dropped()
		l.log.Debug("dropping malformed frame", slog.String("error", err.Error()))

		return
	}

	switch frame.Op {
	case lanyard.OpHello:
		l.onHello(frame)
	case lanyard.OpEvent:
		l.onEvent(frame)
	default:
		l.log.Debug("ignoring frame", slog.String("op", frame.Op.String()))
	}
}

func (l *loop) onHello(frame *lanyard.Frame) {
	hello, err := frame.DecodeHello()
	if err != nil {
		l.log.Debug("hello payload unreadable, using fallback interval", slog.String("error", err.Error()))
	}

	interval := hello.Interval(l.c.heartbeatFallback)
	l.armHeartbeat(interval)

	payload, err := lanyard.EncodeInitialize(l.userID)
	if err != nil {
		l.log.Debug("encode subscribe failed", slog.String("error", err.Error()))
		return
	}

	if err := l.write(payload); err != nil {
		l.log.Debug("subscribe write failed", slog.String("error", err.Error()))
		l.disconnected()

		return
	}

	l.log.Debug("subscribed", slog.Duration("heartbeat_interval", interval))
	l.setState(Subscribed)
}

func (l *loop) onEvent(frame *lanyard.Frame) {
	if !frame.IsPresenceEvent() {
		l.log.Debug("ignoring event", slog.String("type", frame.Type))
		return
	}

	record, shape := lanyard.Extract(frame.Data)
	if record == nil {
		l.c.metrics.dropped()
		l.log.Debug("dropping unrecognized presence payload", slog.String("type", frame.Type))

		return
	}

	l.log.Debug("presence received", slog.String("type", frame.Type), slog.String("shape", shape.String()))

	l.sawSnapshot = true
	l.c.metrics.snapshot(SourceGateway)
	l.emit(Event{
		Kind:     EventSnapshot,
		Snapshot: record.Snapshot(l.c.clock.Now()),
		Source:   SourceGateway,
	})
}

func (l *loop) armHeartbeat(interval time.Duration) {
	l.stopHeartbeat()

	l.hbGen++
	l.hbInterval = interval
	l.heartbeat = l.schedule(interval, heartbeatEvent{epoch: l.epoch, gen: l.hbGen})
}

func (l *loop) onHeartbeat(ev heartbeatEvent) {
	if ev.epoch != l.epoch || ev.gen != l.hbGen || l.heartbeat == nil {
		return
	}

	// Re-arm before writing so the next period is already pending.
	l.heartbeat = l.schedule(l.hbInterval, ev)

	if err := l.write(lanyard.EncodeHeartbeat()); err != nil {
		l.log.Debug("heartbeat write failed", slog.String("error", err.Error()))
		l.disconnected()

		return
	}

	l.c.metrics.heartbeat()
}

func (l *loop) stopHeartbeat() {
	if l.heartbeat != nil {
		l.heartbeat.cancel()
		l.heartbeat = nil
	}
}

func (l *loop) schedule(d time.Duration, ev any) *timerHandle {
	h := &timerHandle{
		timer: l.c.clock.NewTimer(d),
		stop:  make(chan struct{}),
	}

	go func() {
		select {
		case <-h.timer.C():
			l.post(ev)
		case <-h.stop:
		case <-l.ctx.Done():
		}
	}()

	return h
}

func (l *loop) write(data []byte) error {
	if l.conn == nil {
		return errNotConnected
	}

	ctx, cancel := context.WithTimeout(l.connCtx, l.c.writeTimeout)
	defer cancel()

	return l.conn.Write(ctx, data)
}

// disconnected tears down the current connection and schedules the redial.
// Bumping the epoch first turns every in-flight event of the old connection
// stale, so one loss never schedules two reconnects.
func (l *loop) disconnected() {
	l.stopHeartbeat()
	l.closeConn()

	l.epoch++
	l.reconnect = l.schedule(l.c.reconnectDelay, reconnectEvent{epoch: l.epoch})
	l.c.metrics.reconnect()

	l.setState(Disconnected)
}

func (l *loop) closeConn() {
	if l.connCancel != nil {
		l.connCancel()
		l.connCancel = nil
	}

	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

func (l *loop) lookupOnce() {
	result, err := l.c.lookup.Lookup(l.ctx, l.userID)
	l.post(lookupEvent{result: result, err: err})
}

func (l *loop) onLookup(ev lookupEvent) {
	if ev.err != nil || ev.result == nil {
		l.log.Debug("tracking lookup failed", slog.String("error", errString(ev.err)))
		return
	}

	l.emit(Event{Kind: EventTracked, Tracked: ev.result.Tracked, Reason: ev.result.Reason})

	if !ev.result.Tracked || ev.result.Presence == nil || l.sawSnapshot {
		return
	}

	l.sawSnapshot = true
	l.c.metrics.snapshot(SourceLookup)
	l.emit(Event{
		Kind:     EventSnapshot,
		Snapshot: ev.result.Presence.Snapshot(l.c.clock.Now()),
		Source:   SourceLookup,
	})
}

func (l *loop) shutdown() {
	l.epoch++

	l.stopHeartbeat()

	if l.reconnect != nil {
		l.reconnect.cancel()
		l.reconnect = nil
	}

	l.closeConn()

	l.state = Disconnected
	l.c.state.Store(int32(Disconnected))
	l.c.metrics.setState(Disconnected)

	close(l.updates)
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
