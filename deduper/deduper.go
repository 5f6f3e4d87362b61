// Package deduper provides a small in-memory set used to deduplicate crawl
// results before they are written to the store.
package deduper

import (
	"context"
	"hash/fnv"
	"sync"
)

// Deduper records keys it has seen. Implementations are safe for concurrent
// use even though the crawler itself is sequential.
type Deduper interface {
	// AddIfNotExists returns true when the key was not seen before.
	AddIfNotExists(ctx context.Context, key string) bool
}

type hashSet struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

// New returns an FNV-hash backed Deduper.
func New() Deduper {
	return &hashSet{seen: make(map[uint64]struct{})}
}

func (s *hashSet) AddIfNotExists(_ context.Context, key string) bool {
	h := fnv.New64()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[sum]; ok {
		return false
	}

	s.seen[sum] = struct{}{}

	return true
}
