package redelivery

import (
	"context"
	"sync"
	"time"
)

// RetryState tracks the in-flight failure history of one message delivery.
// It is created on the first handler failure and destroyed on terminal
// disposition. It deliberately does not survive a process restart: broker
// redelivery restarts the attempt count from zero.
type RetryState struct {
	MessageID      string
	AttemptCount   int
	FirstFailureAt time.Time
	LastError      ErrorKind
}

// StateStore keeps RetryState per message delivery, keyed by Message.ID().
type StateStore interface {
	// RecordFailure increments the attempt count for the message and returns
	// the updated state.
	RecordFailure(ctx context.Context, messageID string, cause error) (RetryState, error)
	// Clear destroys the state once the message reaches a terminal
	// disposition. Clearing an unknown message is a no-op.
	Clear(ctx context.Context, messageID string) error
}

type stateEntry struct {
	state   RetryState
	expires time.Time
}

// InMemoryStateStore is the default StateStore. Entries carry a TTL so that
// abandoned deliveries (e.g. after a rebalance) do not leak.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]stateEntry
	ttl    time.Duration
}

func NewInMemoryStateStore(ttl time.Duration) *InMemoryStateStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	store := &InMemoryStateStore{
		states: make(map[string]stateEntry),
		ttl:    ttl,
	}
	go store.cleanup()
	return store
}

func (s *InMemoryStateStore) RecordFailure(_ context.Context, messageID string, cause error) (RetryState, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[messageID]
	if !ok || now.After(entry.expires) {
		entry = stateEntry{
			state: RetryState{
				MessageID:      messageID,
				FirstFailureAt: now,
			},
		}
	}

	entry.state.AttemptCount++
	entry.state.LastError = KindOf(cause)
	entry.expires = now.Add(s.ttl)
	s.states[messageID] = entry

	return entry.state, nil
}

func (s *InMemoryStateStore) Clear(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, messageID)
	return nil
}

func (s *InMemoryStateStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, entry := range s.states {
			if now.After(entry.expires) {
				delete(s.states, id)
			}
		}
		s.mu.Unlock()
	}
}
