package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profilecard/presence/internal/lanyard"
)

const testUserID = "94490510688792576"

func newRelay(t *testing.T, mr *miniredis.Miniredis) *Relay {
	t.Helper()

	r, err := New("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func snapshot(status lanyard.Status) *lanyard.Snapshot {
	return &lanyard.Snapshot{
		UserID:      testUserID,
		Username:    "phineas",
		DisplayName: "Phineas",
		Status:      status,
		ReceivedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, sub *Subscription) *Envelope {
	t.Helper()

	select {
	case env, ok := <-sub.Envelopes():
		require.True(t, ok, "subscription closed")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed snapshot")
		return nil
	}
}

func TestRelay_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	watcher := newRelay(t, mr)
	tail := newRelay(t, mr)

	require.NotEqual(t, watcher.InstanceID(), tail.InstanceID())

	sub, err := tail.Subscribe(ctx, testUserID)
	require.NoError(t, err)

	n, err := watcher.Publish(ctx, snapshot(lanyard.StatusIdle))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	env := receive(t, sub)
	assert.Equal(t, watcher.InstanceID(), env.InstanceID)
	assert.Equal(t, lanyard.StatusIdle, env.Snapshot.Status)
	assert.Equal(t, "Phineas", env.Snapshot.DisplayName)
	assert.True(t, env.Snapshot.ReceivedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func TestRelay_SkipsOwnSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	self := newRelay(t, mr)
	other := newRelay(t, mr)

	sub, err := self.Subscribe(ctx, testUserID)
	require.NoError(t, err)

	_, err = self.Publish(ctx, snapshot(lanyard.StatusOnline))
	require.NoError(t, err)

	_, err = other.Publish(ctx, snapshot(lanyard.StatusDND))
	require.NoError(t, err)

	env := receive(t, sub)
	assert.Equal(t, other.InstanceID(), env.InstanceID)
	assert.Equal(t, lanyard.StatusDND, env.Snapshot.Status)
}

func TestRelay_DropsMalformedPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r := newRelay(t, mr)
	other := newRelay(t, mr)

	sub, err := r.Subscribe(ctx, testUserID)
	require.NoError(t, err)

	mr.Publish(r.Channel(testUserID), "not json")
	mr.Publish(r.Channel(testUserID), `{"instance_id":"x"}`)

	_, err = other.Publish(ctx, snapshot(lanyard.StatusOnline))
	require.NoError(t, err)

	env := receive(t, sub)
	assert.Equal(t, other.InstanceID(), env.InstanceID)
}

func TestRelay_ChannelsPerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r := newRelay(t, mr)
	other := newRelay(t, mr)

	assert.Equal(t, "test:"+testUserID, r.Channel(testUserID))

	sub, err := r.Subscribe(ctx, testUserID)
	require.NoError(t, err)

	elsewhere := snapshot(lanyard.StatusOnline)
	elsewhere.UserID = "1"

	n, err := other.Publish(ctx, elsewhere)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = other.Publish(ctx, snapshot(lanyard.StatusIdle))
	require.NoError(t, err)

	assert.Equal(t, lanyard.StatusIdle, receive(t, sub).Snapshot.Status)
}

func TestRelay_PublishRequiresUserID(t *testing.T) {
	r := newRelay(t, miniredis.RunT(t))

	_, err := r.Publish(context.Background(), &lanyard.Snapshot{})
	require.Error(t, err)

	_, err = r.Publish(context.Background(), nil)
	require.Error(t, err)
}

func TestRelay_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := New("redis://"+mr.Addr(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultChannelPrefix+":1", r.Channel("1"))

	sub, err := r.Subscribe(ctx, testUserID)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, ok := <-sub.Envelopes()
	assert.False(t, ok, "envelopes channel should close with the relay")

	require.NoError(t, sub.Close())

	_, err = r.Subscribe(ctx, testUserID)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRelay_CloseDuringSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r, err := New("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)

	pubsub := r.client.Subscribe(ctx, r.Channel(testUserID))
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Close())

	_, err = r.track(pubsub)
	require.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, r.subs, "a subscription confirmed after Close must not be kept")

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("*")) == 0
	}, time.Second, 10*time.Millisecond, "pubsub should be closed")
}

func TestRelay_ConcurrentSubscribeAndClose(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for range 20 {
		r, err := New("redis://"+mr.Addr(), "test", nil)
		require.NoError(t, err)

		subs := make(chan *Subscription, 1)

		go func() {
			sub, subErr := r.Subscribe(ctx, testUserID)
			if subErr != nil {
				sub = nil
			}
			subs <- sub
		}()

		require.NoError(t, r.Close())

		if sub := <-subs; sub != nil {
			select {
			case _, ok := <-sub.Envelopes():
				assert.False(t, ok, "subscription outlived its relay")
			case <-time.After(time.Second):
				t.Fatal("subscription outlived its relay")
			}
		}
	}
}

func TestRelay_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	r := newRelay(t, mr)

	require.NoError(t, r.Ping(context.Background()))

	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Error(t, r.Ping(ctx))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("http://localhost:6379", "", nil)
	require.Error(t, err)
}
