package revocation

import (
	"context"
	"sync"
	"time"
)

type cutoffEntry struct {
	at        time.Time
	expiresAt time.Time
}

// MemoryStore is a process-local store for development and single-instance deployments
type MemoryStore struct {
	mu          sync.RWMutex
	generations map[string]int64
	cutoffs     map[string]cutoffEntry
	cutoffTTL   time.Duration
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(cutoffTTL time.Duration) *MemoryStore {
	if cutoffTTL <= 0 {
		cutoffTTL = DefaultCutoffTTL
	}
	return &MemoryStore{
		generations: make(map[string]int64),
		cutoffs:     make(map[string]cutoffEntry),
		cutoffTTL:   cutoffTTL,
		now:         time.Now,
	}
}

// Current returns the subject's generation, 0 when it was never advanced
func (s *MemoryStore) Current(_ context.Context, subject string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[subject], nil
}

// Advance bumps the subject's generation
func (s *MemoryStore) Advance(_ context.Context, subject string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[subject]++
	return s.generations[subject], nil
}

// Revoke stores a cutoff at second precision that expires after the cutoff TTL
func (s *MemoryStore) Revoke(_ context.Context, subject string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs[subject] = cutoffEntry{at: time.Unix(at.Unix(), 0).UTC(), expiresAt: s.now().Add(s.cutoffTTL)}
	return nil
}

// RevokedAt returns the subject's unexpired cutoff
func (s *MemoryStore) RevokedAt(_ context.Context, subject string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cutoffs[subject]
	if !ok || s.now().After(entry.expiresAt) {
		return time.Time{}, false, nil
	}
	return entry.at, true, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
