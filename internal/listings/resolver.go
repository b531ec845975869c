package listings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/logging"
	"github.com/AIAleph/mvp_market_context/internal/metadata"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
	"github.com/AIAleph/mvp_market_context/internal/snapshot"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

const (
	scanLimit   = 100000
	playLimit   = 100
	fillWorkers = 8
)

// Field names of big map values in the snapshot service's JSON rendering.
const (
	FieldSwapPrice   = "xtz_per_akaOBJ"
	FieldStorePrice  = "current_store_price"
	FieldStartPrice  = "start_price"
	FieldBundlePrice = "xtz_per_bundle"
	FieldGachaPrice  = "xtz_per_gacha"
)

// TokenHashes looks up token metadata CIDs.
type TokenHashes interface {
	IPFSHash(ctx context.Context, tokenID int64) (string, bool)
}

// Resolver reads listings from the indexer. Upstream failures are logged
// and read as empty results.
type Resolver struct {
	qr     indexer.Querier
	snap   snapshot.Reader
	dep    versions.Deployment
	meta   *metadata.Resolver
	hashes TokenHashes
	corr   *Correlator
	now    func() time.Time
}

// New wires a resolver. meta and hashes are optional.
func New(qr indexer.Querier, snap snapshot.Reader, dep versions.Deployment, meta *metadata.Resolver, hashes TokenHashes) *Resolver {
	return &Resolver{
		qr:     qr,
		snap:   snap,
		dep:    dep,
		meta:   meta,
		hashes: hashes,
		corr:   NewCorrelator(qr, snap),
		now:    time.Now,
	}
}

func (r *Resolver) warn(event string, err error, args ...any) {
	logging.Logger().Warn(event, append([]any{"component", "listings.resolver", "error", err.Error()}, args...)...)
}

// entries runs q and keeps the highest block level row per key, in order of
// first appearance.
func (r *Resolver) entries(ctx context.Context, event string, q indexer.Query) []indexer.BigMapEntry {
	es, err := indexer.Entries(ctx, r.qr, q)
	if err != nil {
		r.warn(event, err)
		return nil
	}
	at := make(map[string]int, len(es))
	out := es[:0]
	for _, e := range es {
		if i, ok := at[e.Key]; ok {
			if e.BlockLevel > out[i].BlockLevel {
				out[i] = e
			}
			continue
		}
		at[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}

func (r *Resolver) ops(ctx context.Context, event string, q indexer.Query) []indexer.Operation {
	ops, err := indexer.Ops(ctx, r.qr, q)
	if err != nil {
		r.warn(event, err)
		return nil
	}
	return ops
}

func (r *Resolver) alias(ctx context.Context, address string) string {
	if r.meta == nil {
		return ""
	}
	return r.meta.Alias(ctx, address)
}

func (r *Resolver) gachaMaps() []any {
	var out []any
	for _, d := range r.dep.Gacha.All() {
		out = append(out, d.GachaMap)
	}
	return out
}

// mapOf returns the big map holding listing id of kind.
func (r *Resolver) mapOf(kind Kind, id int64) int64 {
	switch kind {
	case KindSwap:
		return r.dep.SwapMap
	case KindAuction:
		return r.dep.AuctionMap
	case KindBundle:
		return r.dep.BundleMap
	}
	return r.dep.Gacha.Resolve(versions.ByID(id)).GachaMap
}

// Mechanism describes the creating call of kind for a block level.
func (r *Resolver) Mechanism(kind Kind, level int64) Mechanism {
	switch kind {
	case KindSwap:
		return Mechanism{Kind: kind, Entrypoint: "swap", Contract: r.dep.Metaverse, CounterField: "swap_id"}
	case KindAuction:
		return Mechanism{Kind: kind, Entrypoint: "make_auction", Contract: r.dep.Auction, CounterField: "auction_id"}
	case KindBundle:
		return Mechanism{Kind: kind, Entrypoint: "make_bundle", Contract: r.dep.Bundle, CounterField: "bundle_id"}
	}
	c := r.dep.Gacha.Resolve(versions.ByBlockLevel(level)).Contract
	return Mechanism{Kind: KindGacha, Entrypoint: "make_gacha", Contract: c, CounterField: "gacha_id"}
}

// RecoverID recovers the id of the listing created by group at level.
func (r *Resolver) RecoverID(ctx context.Context, kind Kind, level int64, group string) (int64, bool) {
	return r.corr.RecoverID(ctx, r.Mechanism(kind, level), level, group)
}

// idPair reads "Pair a b" call parameters.
func idPair(params string) (first, second int64, ok bool) {
	n, err := michelson.Parse(params)
	if err != nil {
		return 0, 0, false
	}
	return michelson.DecodeIDPair(n)
}

func keyID(e indexer.BigMapEntry) (int64, bool) {
	id, err := strconv.ParseInt(e.Key, 10, 64)
	return id, err == nil
}

func (r *Resolver) title(ctx context.Context, kind Kind, id int64, packHash, issuer string) string {
	pk, ok := kind.Pack()
	if !ok || r.meta == nil {
		return ""
	}
	return r.meta.PackTitle(ctx, pk, id, packHash, issuer)
}

func (r *Resolver) fillHashes(ctx context.Context, l *Listing) {
	if r.hashes == nil {
		return
	}
	l.Hashes = make(map[int64]string, len(l.Items))
	for id := range l.Items {
		if h, ok := r.hashes.IPFSHash(ctx, id); ok {
			l.Hashes[id] = h
		}
	}
}

// Sales lists the active listings offering tokenID.
func (r *Resolver) Sales(ctx context.Context, tokenID int64) Sales {
	var s Sales
	var g errgroup.Group
	g.Go(func() error { s.Swaps = r.swapsFor(ctx, tokenID); return nil })
	g.Go(func() error { s.Auctions = r.auctionsFor(ctx, tokenID); return nil })
	g.Go(func() error { s.Bundles = r.bundlesFor(ctx, tokenID); return nil })
	g.Go(func() error { s.Gachas = r.gachasFor(ctx, tokenID); return nil })
	_ = g.Wait()
	return s
}

func (r *Resolver) swapsFor(ctx context.Context, tokenID int64) []Swap {
	q := indexer.BigMap(r.dep.SwapMap).
		Where(indexer.FieldValue, indexer.Like, fmt.Sprintf(" %d ", tokenID)).
		WithLimit(scanLimit)
	var out []Swap
	for _, e := range r.entries(ctx, "swaps_query_failed", q) {
		id, ok := keyID(e)
		if !ok {
			continue
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeSwapStorage)
		if !ok || st.TokenID != tokenID {
			continue
		}
		sw := swapFrom(id, st)
		sw.Alias = r.alias(ctx, sw.Issuer)
		out = append(out, sw)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *Resolver) auctionsFor(ctx context.Context, tokenID int64) []Auction {
	q := indexer.BigMap(r.dep.AuctionMap).
		Where(indexer.FieldValue, indexer.Like, fmt.Sprintf("{ Pair %d ", tokenID)).
		WithLimit(scanLimit)
	var out []Auction
	for _, e := range r.entries(ctx, "auctions_query_failed", q) {
		id, ok := keyID(e)
		if !ok {
			continue
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeAuctionStorage)
		if !ok || st.TokenID != tokenID {
			continue
		}
		a := auctionFrom(id, st)
		a.Alias = r.alias(ctx, a.Issuer)
		a.Title = r.title(ctx, KindAuction, id, a.PackHash, a.Issuer)
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *Resolver) bundlesFor(ctx context.Context, tokenID int64) []Bundle {
	q := indexer.BigMap(r.dep.BundleMap).
		Where(indexer.FieldValue, indexer.Like, fmt.Sprintf(" Elt %d ", tokenID)).
		WithLimit(scanLimit)
	var out []Bundle
	for _, e := range r.entries(ctx, "bundles_query_failed", q) {
		id, ok := keyID(e)
		if !ok {
			continue
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeBundleStorage)
		if !ok {
			continue
		}
		b := bundleFrom(id, st)
		if b.Items[tokenID] == 0 {
			continue
		}
		b.Alias = r.alias(ctx, b.Issuer)
		b.Title = r.title(ctx, KindBundle, id, b.PackHash, b.Issuer)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// gachasFor counts what is left of tokenID in every gacha. The last prize
// slot adds one unit while the gacha still has plays.
func (r *Resolver) gachasFor(ctx context.Context, tokenID int64) []Gacha {
	maps := r.gachaMaps()
	prizeQ := indexer.NewQuery(indexer.BigMapFields...).
		Where(indexer.FieldBigMapID, indexer.In, maps...).
		Where(indexer.FieldValue, indexer.Like, fmt.Sprintf(" Elt %d ", tokenID)).
		WithLimit(scanLimit)
	lastQ := indexer.NewQuery(indexer.BigMapFields...).
		Where(indexer.FieldBigMapID, indexer.In, maps...).
		Where(indexer.FieldValue, indexer.Like, fmt.Sprintf(" %d ", tokenID)).
		WithLimit(scanLimit)

	var prizes, lasts []indexer.BigMapEntry
	var g errgroup.Group
	g.Go(func() error { prizes = r.entries(ctx, "gacha_prizes_query_failed", prizeQ); return nil })
	g.Go(func() error { lasts = r.entries(ctx, "gacha_last_prize_query_failed", lastQ); return nil })
	_ = g.Wait()

	byID := map[int64]*Gacha{}
	var order []int64
	decode := func(e indexer.BigMapEntry) (*Gacha, bool) {
		id, ok := keyID(e)
		if !ok {
			return nil, false
		}
		if ga, ok := byID[id]; ok {
			return ga, true
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeGachaStorage)
		if !ok {
			return nil, false
		}
		ga := gachaFrom(id, st)
		byID[id] = &ga
		order = append(order, id)
		return &ga, true
	}
	for _, e := range prizes {
		if ga, ok := decode(e); ok {
			ga.Remain = ga.Items[tokenID]
		}
	}
	for _, e := range lasts {
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeGachaStorage)
		if !ok || st.LastPrizeTokenID != tokenID || st.Amount <= 0 {
			continue
		}
		if ga, ok := decode(e); ok {
			ga.Remain++
		}
	}

	var out []Gacha
	for _, id := range order {
		ga := byID[id]
		if ga.Remain <= 0 {
			continue
		}
		ga.Alias = r.alias(ctx, ga.Issuer)
		ga.Title = r.title(ctx, KindGacha, id, ga.PackHash, ga.Issuer)
		out = append(out, *ga)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *Resolver) latest(ctx context.Context, mapID, id int64) (indexer.BigMapEntry, bool) {
	q := indexer.BigMap(mapID).
		Where(indexer.FieldKey, indexer.Eq, id).
		Order(indexer.FieldBlockLevel, indexer.Desc).
		WithLimit(1)
	es := r.entries(ctx, "listing_query_failed", q)
	if len(es) == 0 {
		return indexer.BigMapEntry{}, false
	}
	return es[0], true
}

// feed builds a listing scan over maps, optionally restricted to a window of
// days and to values containing issuerLike.
func (r *Resolver) feed(maps []any, days int, issuerLike string) indexer.Query {
	op := indexer.Eq
	if len(maps) > 1 {
		op = indexer.In
	}
	q := indexer.NewQuery(indexer.BigMapFields...).Where(indexer.FieldBigMapID, op, maps...)
	if days > 0 {
		now := r.now()
		q = q.Where(indexer.FieldTimestamp, indexer.Between, now.AddDate(0, 0, -days).UnixMilli(), now.UnixMilli())
	}
	if issuerLike != "" {
		q = q.Where(indexer.FieldValue, indexer.Like, issuerLike)
	}
	return q.Order(indexer.FieldBlockLevel, indexer.Desc).WithLimit(scanLimit)
}

// issuerPattern renders the packed issuer address for a LIKE predicate.
// ok is false for an invalid address. Matches are confirmed after decoding,
// since the bidder field carries an address too.
func issuerPattern(issuer string) (string, bool) {
	if issuer == "" {
		return "", true
	}
	packed, err := michelson.WriteAddress(issuer)
	if err != nil {
		return "", false
	}
	return "0x" + packed, true
}

// eachLimited runs fn over n indexes with bounded parallelism.
func eachLimited(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(fillWorkers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { fn(i); return nil })
	}
	_ = g.Wait()
}

// Auction returns one auction with its bid history.
func (r *Resolver) Auction(ctx context.Context, id int64) (Auction, bool) {
	e, ok := r.latest(ctx, r.dep.AuctionMap, id)
	if !ok {
		return Auction{}, false
	}
	st, ok := michelson.ParseAnd(e.Value, michelson.DecodeAuctionStorage)
	if !ok {
		return Auction{}, false
	}
	a := auctionFrom(id, st)
	r.fillAuction(ctx, &a)
	r.fillHashes(ctx, &a.Listing)
	return a, true
}

func (r *Resolver) fillAuction(ctx context.Context, a *Auction) {
	a.Alias = r.alias(ctx, a.Issuer)
	a.Title = r.title(ctx, KindAuction, a.ID, a.PackHash, a.Issuer)
	a.Bids = r.BidHistory(ctx, a.ID)
}

// Auctions lists auctions newest first. issuer and days are optional
// filters.
func (r *Resolver) Auctions(ctx context.Context, issuer string, days int) []Auction {
	like, ok := issuerPattern(issuer)
	if !ok {
		return nil
	}
	q := r.feed([]any{r.dep.AuctionMap}, days, like)
	var out []Auction
	for _, e := range r.entries(ctx, "auctions_feed_failed", q) {
		id, ok := keyID(e)
		if !ok {
			continue
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeAuctionStorage)
		if !ok || (issuer != "" && st.Issuer != issuer) {
			continue
		}
		out = append(out, auctionFrom(id, st))
	}
	eachLimited(len(out), func(i int) { r.fillAuction(ctx, &out[i]) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// BidHistory merges bid_all and bid_ten_percent calls on an auction,
// newest first.
func (r *Resolver) BidHistory(ctx context.Context, id int64) []Bid {
	sid := strconv.FormatInt(id, 10)
	allQ := indexer.Calls(r.dep.Auction).
		Where(indexer.FieldEntrypoint, indexer.Eq, "bid_all").
		Where(indexer.FieldParameters, indexer.Eq, sid).
		WithLimit(scanLimit)
	tenQ := indexer.Calls(r.dep.Auction).
		Where(indexer.FieldEntrypoint, indexer.Eq, "bid_ten_percent").
		Where(indexer.FieldParameters, indexer.StartsWith, "Pair "+sid).
		WithLimit(scanLimit)

	var all, ten []indexer.Operation
	var g errgroup.Group
	g.Go(func() error { all = r.ops(ctx, "bid_all_query_failed", allQ); return nil })
	g.Go(func() error { ten = r.ops(ctx, "bid_ten_percent_query_failed", tenQ); return nil })
	_ = g.Wait()

	out := make([]Bid, 0, len(all)+len(ten))
	for _, op := range all {
		out = append(out, Bid{Bidder: op.Source, Amount: op.Amount, Timestamp: op.Timestamp / 1000})
	}
	for _, op := range ten {
		auctionID, amount, ok := idPair(op.Parameters)
		if !ok || auctionID != id {
			continue
		}
		out = append(out, Bid{Bidder: op.Source, Amount: amount, Timestamp: op.Timestamp / 1000})
	}
	for i := range out {
		out[i].Alias = r.alias(ctx, out[i].Bidder)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

// Bundle returns one bundle.
func (r *Resolver) Bundle(ctx context.Context, id int64) (Bundle, bool) {
	e, ok := r.latest(ctx, r.dep.BundleMap, id)
	if !ok {
		return Bundle{}, false
	}
	st, ok := michelson.ParseAnd(e.Value, michelson.DecodeBundleStorage)
	if !ok {
		return Bundle{}, false
	}
	b := bundleFrom(id, st)
	b.Alias = r.alias(ctx, b.Issuer)
	b.Title = r.title(ctx, KindBundle, id, b.PackHash, b.Issuer)
	r.fillHashes(ctx, &b.Listing)
	return b, true
}

// Bundles lists bundles newest first.
func (r *Resolver) Bundles(ctx context.Context, issuer string, days int) []Bundle {
	like, ok := issuerPattern(issuer)
	if !ok {
		return nil
	}
	q := r.feed([]any{r.dep.BundleMap}, days, like)
	var out []Bundle
	for _, e := range r.entries(ctx, "bundles_feed_failed", q) {
		id, ok := keyID(e)
		if !ok {
			continue
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeBundleStorage)
		if !ok || (issuer != "" && st.Issuer != issuer) {
			continue
		}
		out = append(out, bundleFrom(id, st))
	}
	eachLimited(len(out), func(i int) {
		b := &out[i]
		b.Alias = r.alias(ctx, b.Issuer)
		b.Title = r.title(ctx, KindBundle, b.ID, b.PackHash, b.Issuer)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Gacha returns one gacha from the deployment that issued id.
func (r *Resolver) Gacha(ctx context.Context, id int64) (Gacha, bool) {
	e, ok := r.latest(ctx, r.mapOf(KindGacha, id), id)
	if !ok {
		return Gacha{}, false
	}
	st, ok := michelson.ParseAnd(e.Value, michelson.DecodeGachaStorage)
	if !ok {
		return Gacha{}, false
	}
	ga := gachaFrom(id, st)
	ga.Alias = r.alias(ctx, ga.Issuer)
	ga.Title = r.title(ctx, KindGacha, id, ga.PackHash, ga.Issuer)
	r.fillHashes(ctx, &ga.Listing)
	return ga, true
}

// Gachas lists gachas of every deployment newest first.
func (r *Resolver) Gachas(ctx context.Context, issuer string, days int) []Gacha {
	like, ok := issuerPattern(issuer)
	if !ok {
		return nil
	}
	q := r.feed(r.gachaMaps(), days, like)
	var out []Gacha
	for _, e := range r.entries(ctx, "gachas_feed_failed", q) {
		id, ok := keyID(e)
		if !ok {
			continue
		}
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeGachaStorage)
		if !ok || (issuer != "" && st.Issuer != issuer) {
			continue
		}
		out = append(out, gachaFrom(id, st))
	}
	eachLimited(len(out), func(i int) {
		ga := &out[i]
		ga.Alias = r.alias(ctx, ga.Issuer)
		ga.Title = r.title(ctx, KindGacha, ga.ID, ga.PackHash, ga.Issuer)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// CollectOperations lists the applied calls that took units out of a
// listing, newest block first.
func (r *Resolver) CollectOperations(ctx context.Context, kind Kind, id int64) []CollectOp {
	sid := strconv.FormatInt(id, 10)
	var q indexer.Query
	switch kind {
	case KindSwap:
		q = indexer.Calls(r.dep.Metaverse).Where(indexer.FieldEntrypoint, indexer.Eq, "collect")
	case KindAuction:
		q = indexer.Calls(r.dep.Auction).Where(indexer.FieldEntrypoint, indexer.In, "direct_purchase", "close_auction")
	case KindBundle:
		q = indexer.Calls(r.dep.Bundle).Where(indexer.FieldEntrypoint, indexer.Eq, "collect_bundle")
	case KindGacha:
		contract := r.dep.Gacha.Resolve(versions.ByID(id)).Contract
		q = indexer.Calls(contract).Where(indexer.FieldEntrypoint, indexer.Eq, "play_gacha")
	default:
		return nil
	}
	if kind == KindAuction {
		q = q.Where(indexer.FieldParameters, indexer.Eq, sid)
	} else {
		q = q.Where(indexer.FieldParameters, indexer.EndsWith, " "+sid)
	}
	q = q.Order(indexer.FieldBlockLevel, indexer.Desc).WithLimit(scanLimit)

	var out []CollectOp
	for _, op := range r.ops(ctx, "collect_ops_query_failed", q) {
		c := CollectOp{
			Timestamp:  op.Timestamp / 1000,
			Entrypoint: op.Entrypoint,
			GroupHash:  op.GroupHash,
			Quantity:   1,
			Amount:     op.Amount,
		}
		if kind == KindAuction {
			v, ok := michelson.ParseAnd(op.Parameters, michelson.DecodeInt)
			if !ok || v != id {
				continue
			}
		} else {
			qty, listing, ok := idPair(op.Parameters)
			if !ok || listing != id {
				continue
			}
			c.Quantity = qty
		}
		out = append(out, c)
	}
	return out
}

// GachaPlays reads play map entries by key. The play map is chosen by the
// last key. A non-empty player keeps only that player's plays.
func (r *Resolver) GachaPlays(ctx context.Context, keys []int64, player string) []GachaPlay {
	if len(keys) == 0 {
		return nil
	}
	m := r.dep.Gacha.Resolve(versions.ByPlayID(keys[len(keys)-1])).PlayMap
	set := make([]any, len(keys))
	for i, k := range keys {
		set[i] = k
	}
	q := indexer.BigMap(m).Where(indexer.FieldKey, indexer.In, set...)
	if player != "" {
		packed, err := michelson.WriteAddress(player)
		if err != nil {
			return nil
		}
		q = q.Where(indexer.FieldValue, indexer.EndsWith, " 0x"+packed+")")
	}
	q = q.WithLimit(playLimit)
	var out []GachaPlay
	for _, e := range r.entries(ctx, "gacha_plays_query_failed", q) {
		key, ok := keyID(e)
		if !ok {
			continue
		}
		p, ok := michelson.ParseAnd(e.Value, michelson.DecodeGachaPlay)
		if !ok || (player != "" && p.Player != player) {
			continue
		}
		out = append(out, GachaPlay{Key: key, Amount: p.Amount, GachaID: p.GachaID, Player: p.Player})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OraclePlay finds the play of player settled by the oracle call at level:
// the plays between the oracle counters before and at that level.
func (r *Resolver) OraclePlay(ctx context.Context, level int64, player string) (GachaPlay, bool) {
	contract := r.dep.Gacha.Resolve(versions.ByBlockLevel(level)).Contract
	var before, after snapshot.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		before, err = r.snap.ContractStorage(gctx, contract, level-1)
		return err
	})
	g.Go(func() (err error) {
		after, err = r.snap.ContractStorage(gctx, contract, level)
		return err
	})
	if err := g.Wait(); err != nil {
		r.warn("oracle_storage_failed", err, "level", level)
		return GachaPlay{}, false
	}
	start, ok1 := before.Int("oracle_play_id")
	end, ok2 := after.Int("oracle_play_id")
	if !ok1 || !ok2 || end <= start {
		return GachaPlay{}, false
	}
	keys := make([]int64, 0, end-start)
	for k := start; k < end; k++ {
		keys = append(keys, k)
	}
	plays := r.GachaPlays(ctx, keys, player)
	if len(plays) == 0 {
		return GachaPlay{}, false
	}
	return plays[0], true
}

// StoredValue reads a numeric field of the snapshot rendering of a listing.
// Removed listings keep their last value there, which is what cancel and
// close records need.
func (r *Resolver) StoredValue(ctx context.Context, kind Kind, id int64, field string) (int64, bool) {
	d, err := r.snap.BigMapValue(ctx, r.mapOf(kind, id), strconv.FormatInt(id, 10))
	if err != nil {
		r.warn("listing_value_failed", err, "kind", string(kind), "id", id)
		return 0, false
	}
	return d.Int(field)
}

// Title resolves the pack title of a listing, "" for swaps or unknown ids.
func (r *Resolver) Title(ctx context.Context, kind Kind, id int64) string {
	if _, ok := kind.Pack(); !ok || r.meta == nil {
		return ""
	}
	e, ok := r.latest(ctx, r.mapOf(kind, id), id)
	if !ok {
		return ""
	}
	var hash, issuer string
	switch kind {
	case KindAuction:
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeAuctionStorage)
		if !ok {
			return ""
		}
		hash, issuer = st.IPFSHash, st.Issuer
	case KindBundle:
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeBundleStorage)
		if !ok {
			return ""
		}
		hash, issuer = st.IPFSHash, st.Issuer
	case KindGacha:
		st, ok := michelson.ParseAnd(e.Value, michelson.DecodeGachaStorage)
		if !ok {
			return ""
		}
		hash, issuer = st.IPFSHash, st.Issuer
	}
	return r.title(ctx, kind, id, hash, issuer)
}
