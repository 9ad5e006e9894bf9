package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "swapscan:events:"

// RedisStream carries events across processes via Redis Pub/Sub and backs
// the dedupe keys. It implements Publisher, Subscriber, and Deduper.
type RedisStream struct {
	rdb *redis.Client

	mu         sync.Mutex
	unsubFuncs []func()
	closed     bool
}

// NewRedisStream connects and pings; callers fall back to the local stream
// on error.
func NewRedisStream(addr, password string, db int) (*RedisStream, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}
	slog.Info("redis connected", "addr", addr, "db", db)
	return &RedisStream{rdb: rdb}, nil
}

// Publish sends the event on the channel for its type.
func (s *RedisStream) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.rdb.Publish(ctx, channelPrefix+string(event.Type), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe registers a handler for all event channels.
func (s *RedisStream) Subscribe(ctx context.Context, handler func(*Event)) (func(), error) {
	sub := s.rdb.PSubscribe(ctx, channelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	go func() {
		for msg := range ch {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("dropping malformed stream event", "channel", msg.Channel, "error", err)
				continue
			}
			handler(&event)
		}
	}()

	unsub := func() { sub.Close() }
	s.mu.Lock()
	s.unsubFuncs = append(s.unsubFuncs, unsub)
	s.mu.Unlock()
	return unsub, nil
}

// FirstSeen implements the cross-replica dedupe with SETNX + TTL.
func (s *RedisStream) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "swapscan:seen:"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Close terminates subscriptions and the client.
func (s *RedisStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, unsub := range s.unsubFuncs {
		unsub()
	}
	return s.rdb.Close()
}
