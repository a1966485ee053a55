package state

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu          sync.Mutex
	checkpoints map[Kind]Checkpoint
	spool       []SpoolEntry
	lastRun     time.Time
	hasRun      bool
	lastDigest  time.Time
	hasDigest   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[Kind]Checkpoint)}
}

func (s *MemoryStore) Checkpoint(kind Kind) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[kind], nil
}

func (s *MemoryStore) SetCheckpoint(kind Kind, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[kind] = cp
	return nil
}

func (s *MemoryStore) AppendSpool(entries []SpoolEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spool = append(s.spool, entries...)
	return nil
}

func (s *MemoryStore) ReadSpool() ([]SpoolEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpoolEntry, len(s.spool))
	copy(out, s.spool)
	return out, nil
}

func (s *MemoryStore) ResetSpool() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spool = nil
	return nil
}

func (s *MemoryStore) LastRun() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.hasRun, nil
}

func (s *MemoryStore) SetLastRun(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun, s.hasRun = t, true
	return nil
}

func (s *MemoryStore) LastDigest() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDigest, s.hasDigest, nil
}

func (s *MemoryStore) SetLastDigest(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDigest, s.hasDigest = t, true
	return nil
}
