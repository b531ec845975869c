// Package indexertest evaluates indexer queries against in-memory records.
package indexertest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
)

// Ledger is an in-memory indexer. It implements indexer.Querier.
type Ledger struct {
	mu      sync.Mutex
	entries []indexer.Row
	ops     []indexer.Row
	calls   []Call
	failOn  func(indexer.Entity, indexer.Query) error
}

// Call records one query received by the ledger.
type Call struct {
	Entity indexer.Entity
	Query  indexer.Query
}

func New() *Ledger { return &Ledger{} }

// AddEntry stores a big map entry.
func (l *Ledger) AddEntry(mapID int64, key, value string, level int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, indexer.Row{
		indexer.FieldBigMapID:   mapID,
		indexer.FieldKey:        key,
		indexer.FieldValue:      value,
		indexer.FieldBlockLevel: level,
	})
}

// AddOp stores an operation. An empty status is recorded as applied.
func (l *Ledger) AddOp(op indexer.Operation) {
	if op.Status == "" {
		op.Status = "applied"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op.Row())
}

// FailWith makes queries for which fn returns an error fail.
func (l *Ledger) FailWith(fn func(indexer.Entity, indexer.Query) error) {
	l.mu.Lock()
	l.failOn = fn
	l.mu.Unlock()
}

// Calls returns the queries received so far.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

func (l *Ledger) Query(ctx context.Context, entity indexer.Entity, q indexer.Query) ([]indexer.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.calls = append(l.calls, Call{Entity: entity, Query: q})
	fail := l.failOn
	var src []indexer.Row
	switch entity {
	case indexer.BigMapContents:
		src = append(src, l.entries...)
	case indexer.Operations:
		src = append(src, l.ops...)
	default:
		l.mu.Unlock()
		return nil, fmt.Errorf("indexertest: unknown entity %q", entity)
	}
	l.mu.Unlock()
	if fail != nil {
		if err := fail(entity, q); err != nil {
			return nil, err
		}
	}

	var out []indexer.Row
	for _, r := range src {
		if matchAll(r, q.Predicates) {
			out = append(out, r)
		}
	}
	if len(q.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Orders {
				c := compare(out[i][o.Field], out[j][o.Field])
				if c == 0 {
					continue
				}
				if o.Direction == indexer.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchAll(r indexer.Row, ps []indexer.Predicate) bool {
	for _, p := range ps {
		if match(r[p.Field], p) == p.Inverse {
			return false
		}
	}
	return true
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func match(v any, p indexer.Predicate) bool {
	s := text(v)
	switch p.Operation {
	case indexer.Eq, indexer.In:
		for _, want := range p.Set {
			if s == text(want) {
				return true
			}
		}
		return false
	case indexer.Like:
		return len(p.Set) > 0 && strings.Contains(s, text(p.Set[0]))
	case indexer.StartsWith:
		return len(p.Set) > 0 && strings.HasPrefix(s, text(p.Set[0]))
	case indexer.EndsWith:
		return len(p.Set) > 0 && strings.HasSuffix(s, text(p.Set[0]))
	case indexer.Between:
		if len(p.Set) != 2 {
			return false
		}
		return compare(v, p.Set[0]) >= 0 && compare(v, p.Set[1]) <= 0
	}
	return false
}

// compare orders numerically when both sides are numbers, else as text.
func compare(a, b any) int {
	as, bs := text(a), text(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(as, bs)
}
