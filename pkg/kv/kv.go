// Package kv provides the key-value store used for ephemeral per-session
// working state: workflow run checkpoints, in-flight phase locks, and the
// recent-message cache. Entries carry a TTL aligned to the session-data
// retention window.
package kv

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrKeyNotFound indicates the key does not exist or has expired.
var ErrKeyNotFound = errors.New("key not found")

// Store is the minimal contract the engine needs from a key-value backend.
// SetNX is the duplicate-delivery defense: it stores the value only when the
// key is absent and reports whether this caller won.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) get(key string) (string, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(s.entries, key)

		return "", false
	}

	return entry.value, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if !ok {
		return "", ErrKeyNotFound
	}

	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}

	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(key); ok {
		return false, nil
	}

	s.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}

	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return time.Now().Add(ttl)
}
