package challenge

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	issuedAt time.Time
}

type memoryKey struct {
	principal int64
	flow      Flow
}

// MemoryStore is the single-instance backend: a mutex-guarded map with a
// background sweep. Deployments running more than one process must use the
// redis backend instead, or challenges issued by one instance will be absent
// on another.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[memoryKey]memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates the store and starts its sweep goroutine.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MemoryStore{
		entries: make(map[memoryKey]memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}

	go s.sweepLoop(sweepInterval)

	return s
}

// Issue stores data for the principal and flow, replacing any live entry.
func (s *MemoryStore) Issue(_ context.Context, principal int64, flow Flow, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[memoryKey{principal, flow}] = memoryEntry{
		data:     append([]byte(nil), data...),
		issuedAt: time.Now(),
	}
	return nil
}

// Get returns the live challenge without consuming it.
func (s *MemoryStore) Get(_ context.Context, principal int64, flow Flow) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[memoryKey{principal, flow}]
	if !ok || s.expired(entry) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.data...), nil
}

// Consume atomically removes and returns the live challenge.
func (s *MemoryStore) Consume(_ context.Context, principal int64, flow Flow) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{principal, flow}
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, key)

	if s.expired(entry) {
		return nil, ErrNotFound
	}
	return entry.data, nil
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return time.Since(entry.issuedAt) > s.ttl
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
		}
	}
}
