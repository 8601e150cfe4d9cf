package progress

import (
	"context"
	"sync"
	"time"

	"github.com/yokitheyo/wmremover/internal/domain"
)

type memoryEntry struct {
	snapshot  *domain.ProgressSnapshot
	updatedAt time.Time
}

// MemoryStore keeps snapshots in process memory. Finished sessions older than
// ttl are dropped on the next write; ttl <= 0 keeps them forever.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, sessionID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()
	if _, ok := s.sessions[sessionID]; ok {
		return domain.ErrSessionExists
	}
	s.sessions[sessionID] = &memoryEntry{snapshot: domain.NewProgressSnapshot(total), updatedAt: s.now()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*domain.ProgressSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok || s.expired(e) {
		return nil, domain.ErrSessionNotFound
	}
	return e.snapshot.Clone(), nil
}

func (s *MemoryStore) SetCurrent(_ context.Context, sessionID, filename string) error {
	return s.update(sessionID, func(snap *domain.ProgressSnapshot) {
		snap.Current = filename
	})
}

func (s *MemoryStore) AppendResult(_ context.Context, sessionID string, result domain.ProcessingResult) (*domain.ProgressSnapshot, error) {
	var out *domain.ProgressSnapshot
	err := s.update(sessionID, func(snap *domain.ProgressSnapshot) {
		snap.Append(result)
		out = snap.Clone()
	})
	return out, err
}

func (s *MemoryStore) SetStatus(_ context.Context, sessionID string, status domain.BatchStatus) error {
	return s.update(sessionID, func(snap *domain.ProgressSnapshot) {
		snap.Status = status
	})
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) update(sessionID string, fn func(*domain.ProgressSnapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	fn(e.snapshot)
	e.updatedAt = s.now()
	s.evictLocked()
	return nil
}

func (s *MemoryStore) expired(e *memoryEntry) bool {
	return s.ttl > 0 && e.snapshot.IsTerminal() && s.now().Sub(e.updatedAt) > s.ttl
}

func (s *MemoryStore) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
		}
	}
}
