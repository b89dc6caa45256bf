// Package relay fans presence snapshots out to other watchers through Redis
// pub/sub. Every snapshot travels in an envelope carrying the publishing
// instance's id so a watcher never re-reads its own snapshots.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/profilecard/presence/internal/lanyard"
)

// DefaultChannelPrefix prefixes every relay channel.
const DefaultChannelPrefix = "presence"

// ErrClosed is returned by operations on a closed relay.
var ErrClosed = errors.New("relay closed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the payload published for each snapshot.
type Envelope struct {
	InstanceID string            `json:"instance_id"`
	Snapshot   *lanyard.Snapshot `json:"snapshot"`
}

// Relay publishes and subscribes to snapshots for Discord users.
type Relay struct {
	client     *redis.Client
	prefix     string
	instanceID string
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New connects to the Redis server at redisURL (redis:// or rediss://).
// The connection is lazy; use Ping to check reachability.
func New(redisURL, prefix string, logger *slog.Logger) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if prefix == "" {
		prefix = DefaultChannelPrefix
	}

	if logger == nil {
		logger = slog.Default()
	}

	instanceID := uuid.New().String()

	return &Relay{
		client:     redis.NewClient(opts),
		prefix:     prefix,
		instanceID: instanceID,
		logger:     logger.With(slog.String("component", "relay"), slog.String("instance_id", instanceID)),
		subs:       make(map[*Subscription]struct{}),
	}, nil
}

// InstanceID identifies this relay in published envelopes.
func (r *Relay) InstanceID() string { return r.instanceID }

// Channel returns the pub/sub channel for a Discord user.
func (r *Relay) Channel(discordID string) string {
	return r.prefix + ":" + discordID
}

// Ping checks that Redis answers.
func (r *Relay) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

// Publish sends snap to the channel of its user and returns the number of
// subscribers that received it.
func (r *Relay) Publish(ctx context.Context, snap *lanyard.Snapshot) (int64, error) {
	if snap == nil || snap.UserID == "" {
		return 0, errors.New("snapshot has no user id")
	}

	data, err := json.Marshal(Envelope{InstanceID: r.instanceID, Snapshot: snap})
	if err != nil {
		return 0, fmt.Errorf("encode envelope: %w", err)
	}

	n, err := r.client.Publish(ctx, r.Channel(snap.UserID), data).Result()
	if err != nil {
		return 0, fmt.Errorf("publish snapshot: %w", err)
	}

	r.logger.Debug("snapshot published", slog.String("channel", r.Channel(snap.UserID)), slog.Int64("receivers", n))

	return n, nil
}

// Subscribe starts receiving snapshots other instances publish for
// discordID. It returns once Redis has confirmed the subscription.
func (r *Relay) Subscribe(ctx context.Context, discordID string) (*Subscription, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	channel := r.Channel(discordID)
	pubsub := r.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub, err := r.track(pubsub)
	if err != nil {
		return nil, err
	}

	r.logger.Info("relay subscribed", slog.String("channel", channel))

	return sub, nil
}

// Close ends all subscriptions and closes the Redis client.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}

	r.closed = true
	subs := make([]*Subscription, 0, len(r.subs))

	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	var err error
	for _, sub := range subs {
		err = multierr.Append(err, sub.Close())
	}

	return multierr.Append(err, r.client.Close())
}

// track registers a confirmed pubsub and starts delivery. A relay closed in
// the meantime closes pubsub instead.
func (r *Relay) track(pubsub *redis.PubSub) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		_ = pubsub.Close()
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		relay:  r,
		pubsub: pubsub,
		cancel: cancel,
		out:    make(chan *Envelope),
		done:   make(chan struct{}),
	}

	r.subs[sub] = struct{}{}

	go sub.listen(subCtx)

	return sub, nil
}

func (r *Relay) forget(sub *Subscription) {
	r.mu.Lock()
	delete(r.subs, sub)
	r.mu.Unlock()
}

// Subscription delivers envelopes published by other instances.
type Subscription struct {
	relay  *Relay
	pubsub *redis.PubSub
	cancel context.CancelFunc
	out    chan *Envelope
	done   chan struct{}
	once   sync.Once
	err    error
}

// Envelopes returns the delivery channel. It is closed when the
// subscription ends.
func (s *Subscription) Envelopes() <-chan *Envelope { return s.out }

// Close unsubscribes and waits for delivery to stop. It is safe to call
// more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.err = s.pubsub.Close()
		s.relay.forget(s)
	})

	return s.err
}

func (s *Subscription) listen(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)

	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			env, err := s.relay.decode(msg.Payload)
			if err != nil {
				s.relay.logger.Warn("dropping relay message", slog.String("channel", msg.Channel), slog.String("error", err.Error()))
				continue
			}

			if env.InstanceID == s.relay.instanceID {
				continue
			}

			select {
			case s.out <- &env:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Relay) decode(payload string) (Envelope, error) {
	var env Envelope
	if err := json.UnmarshalFromString(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Snapshot == nil {
		return Envelope{}, errors.New("envelope has no snapshot")
	}

	return env, nil
}
