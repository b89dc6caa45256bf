package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profilecard/presence/internal/clock"
	"github.com/profilecard/presence/internal/lanyard"
)

const heartbeatFrame = `{"op":3}`

func TestClient_SnapshotSequenceAcrossReconnect(t *testing.T) {
	h := newHarness(t)

	c1 := h.conn()
	h.subscribe(c1, 30000)

	c1.send(`not json`)
	c1.send(nestedFrame(lanyard.EventInitState, "idle"))
	c1.send(`{"op":0,"t":"PRESENCE_UPDATE","d":{"unrelated":true}}`)
	c1.send(`{"op":0,"t":"PRESENCE_UPDATE","d":{"discord_user":"nope"}}`)
	c1.send(updateFrame(lanyard.EventPresenceUpdate, "dnd"))

	first := h.nextOf(EventSnapshot)
	assert.Equal(t, lanyard.StatusIdle, first.Snapshot.Status)
	assert.Equal(t, SourceGateway, first.Source)
	assert.Equal(t, testUserID, first.Snapshot.UserID)
	assert.Equal(t, h.clk.Now(), first.Snapshot.ReceivedAt)

	second := h.nextOf(EventSnapshot)
	assert.Equal(t, lanyard.StatusDND, second.Snapshot.Status)

	require.NoError(t, c1.Close())
	h.waitState(Disconnected)
	h.clk.Advance(DefaultReconnectDelay)

	c2 := h.conn()
	h.subscribe(c2, 41250)

	c2.send(`{"op":0,"t":"INIT_STATE","d":null}`)
	c2.send(updateFrame(lanyard.EventInitState, "online"))

	third := h.nextOf(EventSnapshot)
	assert.Equal(t, lanyard.StatusOnline, third.Snapshot.Status)

	h.noSnapshot()
}

func TestClient_IgnoresUnknownOpsAndEvents(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	h.subscribe(c, 30000)

	c.send(`{"op":7,"d":{}}`)
	c.send(`{"op":0,"t":"GUILD_CREATE","d":{"discord_user":{"id":"1"},"discord_status":"online"}}`)

	h.noSnapshot()
	assert.Equal(t, Subscribed, h.client.State())
}

func TestClient_NoEmissionAfterStop(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := newFakeDialer()

	client := New(WithDialer(d), WithClock(clk), WithLogger(discardLogger()))
	require.NoError(t, client.Start(context.Background(), testUserID))

	updates := client.Updates()
	recv := func() Event {
		t.Helper()

		select {
		case ev := <-updates:
			return ev
		case <-time.After(waitFor):
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}

	require.Equal(t, Connecting, recv().State)

	var conn *pipeConn
	select {
	case conn = <-d.dialed:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for dial")
	}

	conn.send(helloFrame(30000))
	require.Equal(t, Subscribed, recv().State)

	conn.send(updateFrame(lanyard.EventInitState, "online"))
	require.Equal(t, EventSnapshot, recv().Kind)

	// The loop picks up the first of these and then waits on the consumer.
	for range 3 {
		conn.send(updateFrame(lanyard.EventPresenceUpdate, "idle"))
	}

	client.Stop()

	for ev := range updates {
		t.Fatalf("event after Stop: %+v", ev)
	}

	assert.True(t, conn.isClosed(), "connection closed")
	assert.Equal(t, 0, clk.Pending(), "timers left armed")
	assert.Equal(t, Disconnected, client.State())

	clk.Advance(time.Minute)
	assert.Len(t, d.dialed, 0, "reconnected after Stop")
}

func TestClient_StopFromConsumer(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	h.subscribe(c, 30000)
	c.send(updateFrame(lanyard.EventInitState, "online"))
	h.nextOf(EventSnapshot)

	done := make(chan struct{})

	go func() {
		h.client.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}
}

func TestClient_Heartbeat(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	h.subscribe(c, 30000)
	require.Equal(t, 1, h.clk.Pending())

	h.clk.Advance(30*time.Second - time.Millisecond)
	nothingWritten(t, c)

	h.clk.Advance(time.Millisecond)
	require.JSONEq(t, heartbeatFrame, string(written(t, c)))

	for range 3 {
		h.clk.Advance(15 * time.Second)
		nothingWritten(t, c)

		h.clk.Advance(15 * time.Second)
		require.JSONEq(t, heartbeatFrame, string(written(t, c)))
	}

	h.client.Stop()
	assert.Equal(t, 0, h.clk.Pending())

	h.clk.Advance(time.Minute)
	nothingWritten(t, c)
}

func TestClient_HeartbeatStopsOnClose(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	h.subscribe(c, 30000)

	require.NoError(t, c.Close())
	h.waitState(Disconnected)

	// Only the reconnect timer remains.
	assert.Equal(t, 1, h.clk.Pending())

	h.clk.Advance(30 * time.Second)
	nothingWritten(t, c)
}

func TestClient_HelloRestartsHeartbeat(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	h.subscribe(c, 30000)

	h.clk.Advance(20 * time.Second)

	c.send(helloFrame(10000))
	require.JSONEq(t, `{"op":2,"d":{"subscribe_to_id":"`+testUserID+`"}}`, string(written(t, c)))
	assert.Equal(t, 1, h.clk.Pending(), "previous heartbeat replaced")

	h.clk.Advance(10*time.Second - time.Millisecond)
	nothingWritten(t, c)

	h.clk.Advance(time.Millisecond)
	require.JSONEq(t, heartbeatFrame, string(written(t, c)))
}

func TestClient_HelloFallbackInterval(t *testing.T) {
	h := newHarness(t, WithHeartbeatFallback(5*time.Second))

	c := h.conn()
	c.send(`{"op":1,"d":{}}`)
	written(t, c)
	h.waitState(Subscribed)

	h.clk.Advance(5 * time.Second)
	require.JSONEq(t, heartbeatFrame, string(written(t, c)))
}

func TestClient_ReconnectsAfterFixedDelay(t *testing.T) {
	h := newHarness(t)

	for range 3 {
		c := h.conn()
		h.subscribe(c, 30000)

		require.NoError(t, c.Close())
		h.waitState(Disconnected)

		h.clk.Advance(DefaultReconnectDelay - time.Millisecond)
		h.noDial()

		h.clk.Advance(time.Millisecond)
	}

	h.conn()
	assert.Equal(t, int32(4), h.dialer.dials.Load())
}

func TestClient_ReconnectDelayOption(t *testing.T) {
	h := newHarness(t, WithReconnectDelay(5*time.Second))

	c := h.conn()
	require.NoError(t, c.Close())
	h.waitState(Disconnected)

	h.clk.Advance(DefaultReconnectDelay)
	h.noDial()

	h.clk.Advance(3 * time.Second)
	h.conn()
}

func TestClient_ReconnectsAfterDialFailure(t *testing.T) {
	d := newFakeDialer()
	d.failNext.Store(2)

	h := startHarness(t, d)

	for range 2 {
		h.waitState(Disconnected)
		h.clk.Advance(DefaultReconnectDelay)
	}

	c := h.conn()
	h.subscribe(c, 30000)
	assert.Equal(t, int32(3), d.dials.Load())
}

func TestClient_ReconnectsWhenClosedBeforeHello(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	require.NoError(t, c.Close())
	h.waitState(Disconnected)

	h.clk.Advance(DefaultReconnectDelay)
	h.subscribe(h.conn(), 30000)
}

func TestClient_StopMidDial(t *testing.T) {
	d := newFakeDialer()
	d.hold = make(chan struct{})

	h := startHarness(t, d)

	select {
	case <-d.started:
	case <-time.After(waitFor):
		t.Fatal("dial never started")
	}

	h.client.Stop()

	assert.Equal(t, 0, h.clk.Pending())
	assert.Equal(t, Disconnected, h.client.State())

	close(d.hold)
	h.noDial()
}

func TestClient_StopDuringReconnectWait(t *testing.T) {
	h := newHarness(t)

	c := h.conn()
	require.NoError(t, c.Close())
	h.waitState(Disconnected)
	require.Equal(t, 1, h.clk.Pending())

	h.client.Stop()
	assert.Equal(t, 0, h.clk.Pending())

	h.clk.Advance(time.Minute)
	h.noDial()
}

func TestClient_LookupNotTracked(t *testing.T) {
	h := newHarness(t, WithLookup(&fakeLookup{
		result: &lanyard.LookupResult{Tracked: false, Reason: "User is not being monitored by Lanyard"},
	}))

	ev := h.nextOf(EventTracked)
	assert.False(t, ev.Tracked)
	assert.Equal(t, "User is not being monitored by Lanyard", ev.Reason)

	c := h.conn()
	h.subscribe(c, 30000)
	c.send(updateFrame(lanyard.EventInitState, "offline"))
	assert.Equal(t, lanyard.StatusOffline, h.nextOf(EventSnapshot).Snapshot.Status)
}

func TestClient_LookupFailureIgnored(t *testing.T) {
	h := newHarness(t, WithLookup(&fakeLookup{err: errors.New("network down")}))

	c := h.conn()
	h.subscribe(c, 30000)
	c.send(updateFrame(lanyard.EventInitState, "online"))

	for {
		ev := h.next()
		require.NotEqual(t, EventTracked, ev.Kind)

		if ev.Kind == EventSnapshot {
			break
		}
	}
}

func TestClient_LookupSeedsSnapshot(t *testing.T) {
	record := &lanyard.Presence{
		DiscordUser:   lanyard.DiscordUser{ID: testUserID, Username: "phineas"},
		DiscordStatus: "idle",
	}

	h := newHarness(t, WithLookup(&fakeLookup{result: &lanyard.LookupResult{Tracked: true, Presence: record}}))

	assert.True(t, h.nextOf(EventTracked).Tracked)

	ev := h.nextOf(EventSnapshot)
	assert.Equal(t, SourceLookup, ev.Source)
	assert.Equal(t, lanyard.StatusIdle, ev.Snapshot.Status)
}

func TestClient_LookupAfterGatewaySnapshot(t *testing.T) {
	release := make(chan struct{})
	record := &lanyard.Presence{DiscordUser: lanyard.DiscordUser{ID: testUserID}, DiscordStatus: "idle"}

	h := newHarness(t, WithLookup(&fakeLookup{
		result:  &lanyard.LookupResult{Tracked: true, Presence: record},
		release: release,
	}))

	c := h.conn()
	h.subscribe(c, 30000)
	c.send(updateFrame(lanyard.EventInitState, "dnd"))
	assert.Equal(t, SourceGateway, h.nextOf(EventSnapshot).Source)

	close(release)
	assert.True(t, h.nextOf(EventTracked).Tracked)
	h.noSnapshot()
}

func TestClient_StartErrors(t *testing.T) {
	client := New(WithDialer(newFakeDialer()), WithClock(clock.NewFake(time.Unix(0, 0))), WithLogger(discardLogger()))

	assert.ErrorIs(t, client.Start(context.Background(), ""), ErrEmptyUserID)
	assert.Nil(t, client.Updates())

	require.NoError(t, client.Start(context.Background(), testUserID))
	defer client.Stop()

	assert.ErrorIs(t, client.Start(context.Background(), testUserID), ErrAlreadyStarted)
}

func TestClient_RestartAfterStop(t *testing.T) {
	h := newHarness(t)
	h.subscribe(h.conn(), 30000)

	h.client.Stop()
	h.client.Stop()

	require.NoError(t, h.client.Start(context.Background(), testUserID))

	updates := h.client.Updates()
	require.NotNil(t, updates)

	go func() {
		for range updates {
		}
	}()

	h.conn()
}

func TestClient_StopNeverStarted(t *testing.T) {
	client := New()
	client.Stop()
	assert.Equal(t, Disconnected, client.State())
}

func TestClient_ContextCancelEndsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := New(WithDialer(newFakeDialer()), WithClock(clock.NewFake(time.Unix(0, 0))), WithLogger(discardLogger()))
	require.NoError(t, client.Start(ctx, testUserID))
	defer client.Stop()

	updates := client.Updates()
	cancel()

	timeout := time.After(waitFor)

	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("updates not closed after context cancel")
		}
	}
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	h := newHarness(t, WithMetrics(m))

	c := h.conn()
	h.subscribe(c, 30000)
	assert.Equal(t, float64(Subscribed), promtest.ToFloat64(m.state))

	c.send(`{"op":0`)
	c.send(updateFrame(lanyard.EventInitState, "online"))
	h.nextOf(EventSnapshot)

	h.clk.Advance(30 * time.Second)
	written(t, c)

	require.NoError(t, c.Close())
	h.waitState(Disconnected)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.snapshots.WithLabelValues(string(SourceGateway))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.droppedFrames))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.heartbeats))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.reconnects))
	assert.Equal(t, float64(Disconnected), promtest.ToFloat64(m.state))

	count, err := promtest.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{AwaitingHello, "awaiting-hello"},
		{Subscribed, "subscribed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
