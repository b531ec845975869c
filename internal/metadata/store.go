// Package metadata stores off-chain documents (token info, pack metadata,
// account aliases) and resolves them with an IPFS fallback.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Collection names shared by every backend.
const (
	TokenCollection   = "akaObj-metadata"
	AuctionCollection = "auction-metadata"
	BundleCollection  = "bundle-metadata"
	GachaCollection   = "gacha-metadata"
	AccountCollection = "account-metadata"
	ListCollection    = "list"
)

var ErrUnknownBackend = errors.New("metadata: unknown backend")

// Document is a schemaless record.
type Document map[string]any

func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Strings reads an array of strings, skipping other element types.
func (d Document) Strings(field string) []string {
	switch v := d[field].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int reads a number as stored by any backend: native ints in memory,
// BSON int32/int64 from Mongo, float64 from jsonb.
func (d Document) Int(field string) int64 {
	switch v := d[field].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Filter matches documents by field equality.
type Filter map[string]any

// Store is the metadata collaborator.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter) (Document, bool, error)
	// Upsert sets fields on the document matching filter, creating it with
	// the filter fields when missing.
	Upsert(ctx context.Context, collection string, filter Filter, fields Document) error
	Close(ctx context.Context) error
}

// filterKey renders a filter canonically so equal filters address the same
// document in key/value backends.
func filterKey(f Filter) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, f[k])
	}
	return strings.Join(parts, "&")
}

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
}

func NewMemory() *Memory { return &Memory{docs: map[string]map[string]Document{}} }

func (m *Memory) Find(ctx context.Context, collection string, filter Filter) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][filterKey(filter)]
	if !ok {
		return nil, false, nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out, true, nil
}

func (m *Memory) Upsert(ctx context.Context, collection string, filter Filter, fields Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[collection]
	if !ok {
		c = map[string]Document{}
		m.docs[collection] = c
	}
	key := filterKey(filter)
	d, ok := c[key]
	if !ok {
		d = Document{}
		for k, v := range filter {
			d[k] = v
		}
		c[key] = d
	}
	for k, v := range fields {
		d[k] = v
	}
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

// Options selects and configures a backend.
type Options struct {
	Backend     string
	MongoURI    string
	Database    string
	PostgresDSN string
}

// Open connects the configured backend: mongo, postgres or memory.
func Open(ctx context.Context, o Options) (Store, error) {
	switch o.Backend {
	case "mongo", "mongodb":
		return OpenMongo(ctx, o.MongoURI, o.Database)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, o.PostgresDSN)
	case "memory", "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, o.Backend)
}
