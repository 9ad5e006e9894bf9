// Package stream distributes live detection events from the detector to
// the api process, which republishes them to browser WebSocket clients.
// Redis Pub/Sub carries events across processes; a local in-memory bus
// serves single-process deployments and tests. The same Redis client backs
// the consumer's cross-replica transaction dedupe.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies stream events.
type EventType string

const (
	EventOpportunityDetected EventType = "opportunity.detected"
	EventOpportunityExpired  EventType = "opportunity.expired"
)

// Event is one live detection notice.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	TxHash    string                 `json:"txHash"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent stamps an event with an ID and the current time.
func NewEvent(typ EventType, txHash string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      typ,
		TxHash:    txHash,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publisher sends events toward subscribers; delivery is best-effort and
// asynchronous. The opportunities table remains the source of truth.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Subscriber registers a handler for every event on the stream and returns
// an unsubscribe function.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(*Event)) (func(), error)
}

// Deduper answers "is this the first observation of key within ttl".
// Backed by Redis SETNX in multi-replica deployments.
type Deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// =============================================================================
// Local (in-process) implementations
// =============================================================================

// LocalStream is an in-memory Publisher+Subscriber for single-process runs.
type LocalStream struct {
	mu       sync.RWMutex
	handlers map[int]func(*Event)
	nextID   int
	closed   bool
}

// NewLocalStream builds an empty in-process stream.
func NewLocalStream() *LocalStream {
	return &LocalStream{handlers: make(map[int]func(*Event))}
}

// Publish fans out to all handlers asynchronously.
func (s *LocalStream) Publish(_ context.Context, event *Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	for _, h := range s.handlers {
		go h(event)
	}
	return nil
}

// Subscribe registers a handler.
func (s *LocalStream) Subscribe(_ context.Context, handler func(*Event)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}, nil
}

// Close drops all handlers.
func (s *LocalStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handlers = map[int]func(*Event){}
	return nil
}

// LocalDeduper is a TTL map for single-process dedupe.
type LocalDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewLocalDeduper builds an empty dedupe map.
func NewLocalDeduper() *LocalDeduper {
	return &LocalDeduper{seen: make(map[string]time.Time)}
}

// FirstSeen marks key and reports whether it was new. Expired entries are
// pruned opportunistically.
func (d *LocalDeduper) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}
