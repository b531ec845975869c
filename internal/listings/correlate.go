package listings

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/logging"
	"github.com/AIAleph/mvp_market_context/internal/snapshot"
	"github.com/AIAleph/mvp_market_context/internal/telemetry"
)

// sameBlockLimit caps the same-block calls considered for one recovery.
const sameBlockLimit = 100

// Mechanism identifies the creating call of a listing and the storage
// counter that numbers it.
type Mechanism struct {
	Kind         Kind
	Entrypoint   string
	Contract     string
	CounterField string
}

// Correlator recovers listing ids by counting same-block calls on top of
// the counter value stored just before the block.
//
// Ids are assumed to be assigned in intra-block counter order without gaps.
// Only applied calls are counted, so a failed call in the same block does
// not shift later ids.
type Correlator struct {
	qr   indexer.Querier
	snap snapshot.Reader
}

func NewCorrelator(qr indexer.Querier, snap snapshot.Reader) *Correlator {
	return &Correlator{qr: qr, snap: snap}
}

// RecoverID returns the id created by the call of group at level. It
// reports false when the counter cannot be read or the group is not among
// the block's calls.
func (c *Correlator) RecoverID(ctx context.Context, m Mechanism, level int64, group string) (int64, bool) {
	ctx, span := telemetry.Tracer("listings").Start(ctx, "listings.RecoverID", trace.WithAttributes(
		attribute.String("entrypoint", m.Entrypoint),
		attribute.String("contract", m.Contract),
		attribute.Int64("level", level),
	))
	defer span.End()

	log := logging.Logger().With("component", "listings.correlator", "entrypoint", m.Entrypoint, "level", level, "group", group)
	if level <= 1 || group == "" {
		return 0, false
	}

	var c0 int64
	var ops []indexer.Operation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := c.snap.ContractStorage(gctx, m.Contract, level-1)
		if err != nil {
			return fmt.Errorf("storage at %d: %w", level-1, err)
		}
		v, ok := st.Int(m.CounterField)
		if !ok {
			return fmt.Errorf("storage at %d: no %s", level-1, m.CounterField)
		}
		c0 = v
		return nil
	})
	g.Go(func() error {
		q := indexer.Calls(m.Contract).
			Where(indexer.FieldEntrypoint, indexer.Eq, m.Entrypoint).
			Where(indexer.FieldBlockLevel, indexer.Eq, level).
			Order(indexer.FieldCounter, indexer.Asc).
			WithLimit(sameBlockLimit)
		var err error
		ops, err = indexer.Ops(gctx, c.qr, q)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("correlation_failed", "error", err.Error())
		return 0, false
	}
	for i, op := range ops {
		if op.GroupHash == group {
			id := c0 + int64(i)
			span.SetAttributes(attribute.Int64("listing_id", id))
			return id, true
		}
	}
	log.Warn("correlation_miss", "same_block_calls", len(ops))
	return 0, false
}
