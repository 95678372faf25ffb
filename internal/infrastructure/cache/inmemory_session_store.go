package cache

import (
	"context"
	"sync"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/google/uuid"
)

type sessionEntry struct {
	job       *printing.DocumentJob
	expiresAt time.Time
}

// InMemorySessionStore keeps dialog sessions in process memory.
// Suitable for single-instance deployments and testing.
type InMemorySessionStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]sessionEntry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemorySessionStore creates a store whose sessions expire ttl after
// their last save. A background goroutine sweeps expired sessions.
func NewInMemorySessionStore(ttl time.Duration) *InMemorySessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	store := &InMemorySessionStore{
		entries:  make(map[uuid.UUID]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// FindByID returns a copy of the stored session
func (s *InMemorySessionStore) FindByID(_ context.Context, id uuid.UUID) (*printing.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || s.now().After(e.expiresAt) {
		return nil, shared.ErrNotFound
	}
	return cloneJob(e.job), nil
}

// Save stores a copy of job and refreshes its TTL
func (s *InMemorySessionStore) Save(_ context.Context, job *printing.DocumentJob) error {
	if job == nil {
		return shared.NewDomainError("INVALID_INPUT", "job is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[job.ID] = sessionEntry{job: cloneJob(job), expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete removes a session
func (s *InMemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Close stops the cleanup goroutine
// Safe to call multiple times
func (s *InMemorySessionStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemorySessionStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemorySessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ SessionStore = (*InMemorySessionStore)(nil)
