package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "caja:events:"

// Channel is the Redis pub/sub channel of a till.
func Channel(tillID string) string { return channelPrefix + tillID }

type RedisPublisher struct{ rdb *redis.Client }

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) Publish(ctx context.Context, ev SessionChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel(ev.TillID), data).Err(); err != nil {
		return fmt.Errorf("events: redis publish: %w", err)
	}
	return nil
}

// Subscription streams the events of one till until Close or ctx is done.
type Subscription struct {
	ps     *redis.PubSub
	events chan SessionChanged
}

// Subscribe waits for the subscription to be confirmed so no event published
// after it returns is missed.
func Subscribe(ctx context.Context, rdb *redis.Client, tillID string) (*Subscription, error) {
	ps := rdb.Subscribe(ctx, Channel(tillID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("events: subscribe %s: %w", tillID, err)
	}

	s := &Subscription{ps: ps, events: make(chan SessionChanged, 16)}
	go s.pump(ctx)
	return s, nil
}

func (s *Subscription) Events() <-chan SessionChanged { return s.events }

func (s *Subscription) Close() error { return s.ps.Close() }

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.ps.Channel():
			if !ok {
				return
			}
			var ev SessionChanged
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("events: dropping malformed message")
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
