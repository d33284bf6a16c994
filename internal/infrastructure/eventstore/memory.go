package eventstore

import (
	"context"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// MemoryStore is the in-process Store implementation, used by tests and as
// the reference for the concurrency contract: appends to the same stream are
// serialized by a per-stream mutex so the version check and the write are
// one atomic step, while different streams never contend with each other.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string]*memoryStream
}

type memoryStream struct {
	mu     sync.Mutex
	events []StoredEvent
}

// NewMemoryStore creates an empty in-memory event store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string]*memoryStream),
	}
}

var _ Store = (*MemoryStore)(nil)

// Append implements Store
func (s *MemoryStore) Append(ctx context.Context, stream shared.StreamID, events []shared.DomainEvent, expectedVersion int64) (int64, error) {
	if err := validateAppend(stream, events, expectedVersion); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ms := s.stream(stream.StorageKey())

	ms.mu.Lock()
	defer ms.mu.Unlock()

	current := int64(len(ms.events))
	if current != expectedVersion {
		return 0, concurrencyConflict(stream, expectedVersion, current)
	}
	for i, event := range events {
		ms.events = append(ms.events, StoredEvent{
			Version: current + int64(i) + 1,
			Event:   event,
		})
	}
	return current + int64(len(events)), nil
}

// Events implements Store
func (s *MemoryStore) Events(ctx context.Context, stream shared.StreamID, fromVersion int64) ([]StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ms, ok := s.streams[stream.StorageKey()]
	s.mu.RUnlock()
	if !ok {
		return []StoredEvent{}, nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	result := make([]StoredEvent, 0, len(ms.events))
	for _, stored := range ms.events {
		if stored.Version > fromVersion {
			result = append(result, stored)
		}
	}
	return result, nil
}

// stream returns the per-stream state, creating it on first touch
func (s *MemoryStore) stream(key string) *memoryStream {
	s.mu.RLock()
	ms, ok := s.streams[key]
	s.mu.RUnlock()
	if ok {
		return ms
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ms, ok = s.streams[key]; ok {
		return ms
	}
	ms = &memoryStream{}
	s.streams[key] = ms
	return ms
}
