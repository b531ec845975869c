// Package snapshottest serves fixed storage snapshots and big map values.
package snapshottest

import (
	"context"
	"fmt"
	"sync"

	"github.com/AIAleph/mvp_market_context/internal/snapshot"
)

// Static implements snapshot.Reader from maps filled by the test.
type Static struct {
	mu      sync.Mutex
	storage map[string]snapshot.Document
	values  map[string]snapshot.Document
	reads   int
}

func New() *Static {
	return &Static{storage: map[string]snapshot.Document{}, values: map[string]snapshot.Document{}}
}

func storageKey(address string, level int64) string { return fmt.Sprintf("%s@%d", address, level) }

func valueKey(mapID int64, key string) string { return fmt.Sprintf("%d/%s", mapID, key) }

// SetStorage records the storage of address as of level.
func (s *Static) SetStorage(address string, level int64, doc snapshot.Document) {
	s.mu.Lock()
	s.storage[storageKey(address, level)] = doc
	s.mu.Unlock()
}

// SetValue records the current value under key in a big map.
func (s *Static) SetValue(mapID int64, key string, doc snapshot.Document) {
	s.mu.Lock()
	s.values[valueKey(mapID, key)] = doc
	s.mu.Unlock()
}

// Reads counts lookups served, found or not.
func (s *Static) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Static) ContractStorage(ctx context.Context, address string, level int64) (snapshot.Document, error) {
	return s.lookup(ctx, s.storage, storageKey(address, level))
}

func (s *Static) BigMapValue(ctx context.Context, mapID int64, key string) (snapshot.Document, error) {
	return s.lookup(ctx, s.values, valueKey(mapID, key))
}

func (s *Static) lookup(ctx context.Context, m map[string]snapshot.Document, k string) (snapshot.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	d, ok := m[k]
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	return d, nil
}
