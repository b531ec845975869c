// Package versions routes a lookup to the contract deployment that was live
// for a given listing id, block level, timestamp or play id.
package versions

import (
	"errors"
	"fmt"

	"github.com/AIAleph/mvp_market_context/internal/michelson"
)

// Unset marks a selector field that was not supplied. It never meets a
// threshold.
const Unset int64 = -1

// Thresholds are the first values observed on a deployment.
type Thresholds struct {
	ID         int64
	BlockLevel int64
	Timestamp  int64
	PlayID     int64
}

// Descriptor describes one deployment of a versioned contract.
type Descriptor struct {
	Name         string
	ValidFrom    Thresholds
	Contract     string
	GachaMap     int64
	PlayMap      int64
	WhitelistMap int64
	ParamsLayout michelson.GachaLayout
}

// Selector carries whichever discriminators the caller knows.
type Selector struct {
	ID         int64
	BlockLevel int64
	Timestamp  int64
	PlayID     int64
}

func unsetSelector() Selector {
	return Selector{ID: Unset, BlockLevel: Unset, Timestamp: Unset, PlayID: Unset}
}

func ByID(id int64) Selector {
	s := unsetSelector()
	s.ID = id
	return s
}

func ByBlockLevel(level int64) Selector {
	s := unsetSelector()
	s.BlockLevel = level
	return s
}

func ByTimestamp(ts int64) Selector {
	s := unsetSelector()
	s.Timestamp = ts
	return s
}

func ByPlayID(id int64) Selector {
	s := unsetSelector()
	s.PlayID = id
	return s
}

func meets(v, threshold int64) bool { return v != Unset && v >= threshold }

func (s Selector) matches(t Thresholds) bool {
	return meets(s.ID, t.ID) ||
		meets(s.BlockLevel, t.BlockLevel) ||
		meets(s.Timestamp, t.Timestamp) ||
		meets(s.PlayID, t.PlayID)
}

// Router is an immutable, ordered table of deployments.
type Router struct {
	versions []Descriptor
}

var (
	ErrNoVersions = errors.New("versions: empty table")
	ErrUnordered  = errors.New("versions: thresholds must ascend")
)

// New validates that descriptors are given oldest first with non-decreasing
// thresholds on every axis.
func New(ds ...Descriptor) (*Router, error) {
	if len(ds) == 0 {
		return nil, ErrNoVersions
	}
	for i := 1; i < len(ds); i++ {
		p, c := ds[i-1].ValidFrom, ds[i].ValidFrom
		if c.ID < p.ID || c.BlockLevel < p.BlockLevel || c.Timestamp < p.Timestamp || c.PlayID < p.PlayID {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnordered, ds[i].Name, ds[i-1].Name)
		}
	}
	out := make([]Descriptor, len(ds))
	copy(out, ds)
	return &Router{versions: out}, nil
}

// MustNew is New for static tables.
func MustNew(ds ...Descriptor) *Router {
	r, err := New(ds...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the newest deployment for which any supplied selector
// field reaches its threshold, falling back to the earliest deployment.
func (r *Router) Resolve(s Selector) Descriptor {
	for i := len(r.versions) - 1; i > 0; i-- {
		if s.matches(r.versions[i].ValidFrom) {
			return r.versions[i]
		}
	}
	return r.versions[0]
}

// All returns the deployments oldest first.
func (r *Router) All() []Descriptor {
	out := make([]Descriptor, len(r.versions))
	copy(out, r.versions)
	return out
}

// Contracts lists every deployment's contract address, oldest first.
func (r *Router) Contracts() []string {
	out := make([]string, len(r.versions))
	for i, d := range r.versions {
		out[i] = d.Contract
	}
	return out
}
