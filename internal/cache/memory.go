package cache

import (
	"context"
	"time"
)

// MemoryStore is a Store backed by an LRUCache, for single-process deployments.
type MemoryStore struct {
	lru *LRUCache[string]
}

func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{lru: NewLRUCache[string](maxSize, time.Minute)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.lru.SetWithTTL(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Delete(key)
	return nil
}

// CleanExpired lets a Manager sweep the store.
func (s *MemoryStore) CleanExpired() int { return s.lru.CleanExpired() }

func (s *MemoryStore) Close() error { return nil }
