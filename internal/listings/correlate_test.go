package listings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/indexer/indexertest"
	"github.com/AIAleph/mvp_market_context/internal/snapshot"
	"github.com/AIAleph/mvp_market_context/internal/snapshot/snapshottest"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

var swapMechanism = Mechanism{Kind: KindSwap, Entrypoint: "swap", Contract: versions.MetaverseContract, CounterField: "swap_id"}

func sameBlockSwaps(l *indexertest.Ledger, level int64, groups ...string) {
	for i, g := range groups {
		l.AddOp(indexer.Operation{
			Entrypoint:  "swap",
			Destination: versions.MetaverseContract,
			BlockLevel:  level,
			Counter:     int64(100 + 10*i),
			GroupHash:   g,
		})
	}
}

func TestRecoverIDCountsSameBlockCalls(t *testing.T) {
	l := indexertest.New()
	// Added out of counter order on purpose.
	sameBlockSwaps(l, 500, "opC", "opA")
	l.AddOp(indexer.Operation{Entrypoint: "swap", Destination: versions.MetaverseContract, BlockLevel: 500, Counter: 105, GroupHash: "opB"})
	snap := snapshottest.New()
	snap.SetStorage(versions.MetaverseContract, 499, snapshot.Document{"swap_id": "10"})
	c := NewCorrelator(l, snap)
	ctx := context.Background()

	for group, want := range map[string]int64{"opC": 10, "opB": 11, "opA": 12} {
		id, ok := c.RecoverID(ctx, swapMechanism, 500, group)
		require.True(t, ok, group)
		assert.Equal(t, want, id, group)
	}
}

func TestRecoverIDSkipsFailedCalls(t *testing.T) {
	l := indexertest.New()
	l.AddOp(indexer.Operation{Entrypoint: "swap", Destination: versions.MetaverseContract, BlockLevel: 500, Counter: 1, GroupHash: "opFailed", Status: "failed"})
	sameBlockSwaps(l, 500, "opA", "opB")
	snap := snapshottest.New()
	snap.SetStorage(versions.MetaverseContract, 499, snapshot.Document{"swap_id": "10"})
	c := NewCorrelator(l, snap)

	id, ok := c.RecoverID(context.Background(), swapMechanism, 500, "opB")
	require.True(t, ok)
	assert.Equal(t, int64(11), id)

	_, ok = c.RecoverID(context.Background(), swapMechanism, 500, "opFailed")
	assert.False(t, ok)
}

func TestRecoverIDMisses(t *testing.T) {
	l := indexertest.New()
	sameBlockSwaps(l, 500, "opA")
	snap := snapshottest.New()
	snap.SetStorage(versions.MetaverseContract, 499, snapshot.Document{"swap_id": "10"})
	c := NewCorrelator(l, snap)
	ctx := context.Background()

	_, ok := c.RecoverID(ctx, swapMechanism, 500, "opZ")
	assert.False(t, ok, "group not in block")

	_, ok = c.RecoverID(ctx, swapMechanism, 600, "opA")
	assert.False(t, ok, "no storage before level")

	_, ok = c.RecoverID(ctx, swapMechanism, 1, "opA")
	assert.False(t, ok)
	_, ok = c.RecoverID(ctx, swapMechanism, 500, "")
	assert.False(t, ok)
}

func TestRecoverIDMissingCounterField(t *testing.T) {
	l := indexertest.New()
	sameBlockSwaps(l, 500, "opA")
	snap := snapshottest.New()
	snap.SetStorage(versions.MetaverseContract, 499, snapshot.Document{"auction_id": "3"})

	_, ok := NewCorrelator(l, snap).RecoverID(context.Background(), swapMechanism, 500, "opA")
	assert.False(t, ok)
}

func TestResolverMechanismFollowsGachaDeployment(t *testing.T) {
	r := New(indexertest.New(), snapshottest.New(), versions.Mainnet(), nil, nil)

	old := r.Mechanism(KindGacha, 1697162)
	assert.Equal(t, "KT1P1WJuRb9K62gdx1HfkNJwohLA5EmyCoQK", old.Contract)
	cur := r.Mechanism(KindGacha, 1697163)
	assert.Equal(t, "KT1GsdckBVCsgqp6ERYLnyawyXACAAQspPv6", cur.Contract)
	assert.Equal(t, "gacha_id", cur.CounterField)

	b := r.Mechanism(KindBundle, 10)
	assert.Equal(t, Mechanism{Kind: KindBundle, Entrypoint: "make_bundle", Contract: versions.BundleContract, CounterField: "bundle_id"}, b)
}
