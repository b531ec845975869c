package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/listings"
	"github.com/AIAleph/mvp_market_context/internal/logging"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
	"github.com/AIAleph/mvp_market_context/internal/telemetry"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

const (
	scanLimit = 100000
	workers   = 16
)

// triggers are the marketplace entrypoints that move tokens through
// internal transfers.
var triggers = []any{
	"collect", "swap", "cancel_swap",
	"direct_purchase", "close_auction", "make_auction", "cancel_auction",
	"collect_bundle", "make_bundle", "cancel_bundle",
	"oracle_gacha", "make_gacha", "cancel_gacha",
}

// Listings is the listing lookup surface used to enrich records.
// *listings.Resolver implements it.
type Listings interface {
	RecoverID(ctx context.Context, kind listings.Kind, level int64, group string) (int64, bool)
	StoredValue(ctx context.Context, kind listings.Kind, id int64, field string) (int64, bool)
	Title(ctx context.Context, kind listings.Kind, id int64) string
	CollectOperations(ctx context.Context, kind listings.Kind, id int64) []listings.CollectOp
	OraclePlay(ctx context.Context, level int64, player string) (listings.GachaPlay, bool)
}

// Names resolves display names. *metadata.Resolver implements it.
type Names interface {
	TokenName(ctx context.Context, tokenID int64) string
	Alias(ctx context.Context, address string) string
}

// Reconstructor builds activity histories. It keeps no state between calls.
type Reconstructor struct {
	qr    indexer.Querier
	dep   versions.Deployment
	lst   Listings
	names Names
}

// New wires a reconstructor. names may be nil.
func New(qr indexer.Querier, dep versions.Deployment, lst Listings, names Names) *Reconstructor {
	return &Reconstructor{qr: qr, dep: dep, lst: lst, names: names}
}

// leg is one token movement of a transfer made by a contract on behalf of
// a marketplace call in the same group.
type leg struct {
	timestamp int64
	group     string
	tx        michelson.TransferTx
}

// scope is either one token or one account.
type scope struct {
	tokenID *int64
	address string
}

func (s scope) account() bool { return s.tokenID == nil }

func (s scope) involves(tx michelson.TransferTx) bool {
	if s.account() {
		return tx.From == s.address || tx.To == s.address
	}
	return tx.TokenID == *s.tokenID
}

// external renders a transfer signed by a user. Token history records both
// sides, account history only the side of the account.
func (s scope) external(ts int64, tx michelson.TransferTx) []Record {
	base := Record{Timestamp: ts, TokenID: ptr(tx.TokenID), Amount: tx.Amount}
	if s.account() {
		switch {
		case tx.From == s.address && tx.To == michelson.BurnAddress:
			base.Type = TypeBurn
		case tx.From == s.address:
			base.Type = TypeSend
		case tx.To == s.address:
			base.Type = TypeReceive
		default:
			return nil
		}
		return []Record{base}
	}
	if tx.To == michelson.BurnAddress {
		base.Type, base.Address = TypeBurn, tx.From
		return []Record{base}
	}
	send, receive := base, base
	send.Type, send.Address = TypeSend, tx.From
	receive.Type, receive.Address = TypeReceive, tx.To
	return []Record{send, receive}
}

func ptr(v int64) *int64 { return &v }

// TokenActivity returns the history of one token, newest first.
func (r *Reconstructor) TokenActivity(ctx context.Context, tokenID int64) []Record {
	ctx, span := telemetry.Tracer("activity").Start(ctx, "activity.TokenActivity",
		trace.WithAttributes(attribute.Int64("token_id", tokenID)))
	defer span.End()
	start := time.Now()

	q := indexer.Calls(r.dep.NFT).
		Where(indexer.FieldEntrypoint, indexer.In, "transfer", "mint").
		Where(indexer.FieldParameters, indexer.Like, fmt.Sprintf("(Pair %d", tokenID)).
		WithLimit(scanLimit)
	sc := scope{tokenID: &tokenID}
	direct, legs := r.classify(r.operations(ctx, q), sc)
	out := append(direct, r.resolve(ctx, legs, sc)...)
	r.decorate(ctx, out, sc)
	sortNewestFirst(out)

	span.SetAttributes(attribute.Int("records", len(out)))
	logging.Logger().Debug("token_activity", "component", "activity", "token_id", tokenID,
		"records", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out
}

// AccountActivity returns the history of one account, newest first. Pack
// creations and cancellations are merged per listing and every listing the
// account created is expanded into its sales.
func (r *Reconstructor) AccountActivity(ctx context.Context, address string) []Record {
	ctx, span := telemetry.Tracer("activity").Start(ctx, "activity.AccountActivity",
		trace.WithAttributes(attribute.String("address", address)))
	defer span.End()
	start := time.Now()

	packed, err := michelson.WriteAddress(address)
	if err != nil {
		logging.Logger().Warn("invalid_address", "component", "activity", "address", address, "error", err.Error())
		return nil
	}
	packedQ := indexer.Calls(r.dep.NFT).
		Where(indexer.FieldEntrypoint, indexer.In, "transfer", "mint").
		Where(indexer.FieldParameters, indexer.Like, "Pair 0x"+packed).
		WithLimit(scanLimit)
	quotedQ := indexer.Calls(r.dep.NFT).
		Where(indexer.FieldEntrypoint, indexer.Eq, "transfer").
		Where(indexer.FieldParameters, indexer.Like, `Pair "`+address+`"`).
		WithLimit(scanLimit)

	sc := scope{address: address}
	direct, legs := r.classify(r.operations(ctx, packedQ, quotedQ), sc)
	merged, templates := merge(r.resolve(ctx, legs, sc))
	out := append(direct, merged...)
	out = append(out, r.expand(ctx, templates)...)
	r.decorate(ctx, out, sc)
	sortNewestFirst(out)

	span.SetAttributes(attribute.Int("records", len(out)))
	logging.Logger().Debug("account_activity", "component", "activity", "address", address,
		"records", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out
}

type opKey struct {
	group    string
	counter  int64
	internal bool
	params   string
}

// operations runs qs concurrently and unions the results. A call returned
// by several queries is kept once; identical calls within one result are
// all kept.
func (r *Reconstructor) operations(ctx context.Context, qs ...indexer.Query) []indexer.Operation {
	res := make([][]indexer.Operation, len(qs))
	var g errgroup.Group
	for i, q := range qs {
		i, q := i, q
		g.Go(func() error {
			ops, err := indexer.Ops(ctx, r.qr, q)
			if err != nil {
				logging.Logger().Warn("history_query_failed", "component", "activity", "error", err.Error())
				return nil
			}
			res[i] = ops
			return nil
		})
	}
	_ = g.Wait()

	seen := map[opKey]int{}
	var out []indexer.Operation
	for _, ops := range res {
		cur := map[opKey]int{}
		for _, op := range ops {
			k := opKey{op.GroupHash, op.Counter, op.Internal, op.Parameters}
			cur[k]++
			if cur[k] > seen[k] {
				seen[k] = cur[k]
				out = append(out, op)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Counter < out[j].Counter
	})
	return out
}

// classify turns mints and user transfers into records and defers the
// transfers made by contracts.
func (r *Reconstructor) classify(ops []indexer.Operation, sc scope) (direct []Record, legs []leg) {
	for _, op := range ops {
		ts := op.Timestamp / 1000
		switch op.Entrypoint {
		case "mint":
			m, ok := michelson.ParseAnd(op.Parameters, michelson.DecodeMintParams)
			if !ok {
				continue
			}
			if (sc.account() && m.To != sc.address) || (!sc.account() && m.TokenID != *sc.tokenID) {
				continue
			}
			rec := Record{Timestamp: ts, Type: TypeMint, TokenID: ptr(m.TokenID), Amount: m.Amount}
			if !sc.account() {
				rec.Address = m.To
			}
			direct = append(direct, rec)
		case "transfer":
			txs, ok := michelson.ParseAnd(op.Parameters, michelson.DecodeTransferParams)
			if !ok {
				continue
			}
			for _, tx := range txs {
				if !sc.involves(tx) {
					continue
				}
				if op.Internal {
					legs = append(legs, leg{timestamp: ts, group: op.GroupHash, tx: tx})
					continue
				}
				direct = append(direct, sc.external(ts, tx)...)
			}
		}
	}
	return direct, legs
}

// trigger finds the marketplace call of group.
func (r *Reconstructor) trigger(ctx context.Context, group string) (indexer.Operation, bool) {
	q := indexer.NewQuery(indexer.OperationFields...).
		Where(indexer.FieldKind, indexer.Eq, "transaction").
		Where(indexer.FieldStatus, indexer.Eq, "applied").
		Where(indexer.FieldGroupHash, indexer.Eq, group).
		Where(indexer.FieldEntrypoint, indexer.In, triggers...).
		Order(indexer.FieldCounter, indexer.Asc).
		WithLimit(1)
	ops, err := indexer.Ops(ctx, r.qr, q)
	if err != nil {
		logging.Logger().Warn("trigger_query_failed", "component", "activity", "group", group, "error", err.Error())
		return indexer.Operation{}, false
	}
	if len(ops) == 0 {
		return indexer.Operation{}, false
	}
	return ops[0], true
}

// resolve attributes deferred legs to their marketplace call. Legs without
// one are dropped. Results keep leg order.
func (r *Reconstructor) resolve(ctx context.Context, legs []leg, sc scope) []Record {
	if len(legs) == 0 {
		return nil
	}
	at := map[string]int{}
	var groups []string
	for _, l := range legs {
		if _, ok := at[l.group]; !ok {
			at[l.group] = len(groups)
			groups = append(groups, l.group)
		}
	}
	ops := make([]indexer.Operation, len(groups))
	found := make([]bool, len(groups))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			ops[i], found[i] = r.trigger(ctx, group)
			return nil
		})
	}
	_ = g.Wait()

	slots := make([]Record, len(legs))
	ok := make([]bool, len(legs))
	g = new(errgroup.Group)
	g.SetLimit(workers)
	for i, l := range legs {
		i, l := i, l
		gi := at[l.group]
		if !found[gi] {
			continue
		}
		g.Go(func() error {
			slots[i], ok[i] = r.enrich(ctx, l, ops[gi], sc), true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Record, 0, len(legs))
	dropped := 0
	for i := range slots {
		if !ok[i] {
			dropped++
			continue
		}
		out = append(out, slots[i])
	}
	if dropped > 0 {
		logging.Logger().Warn("legs_unattributed", "component", "activity", "dropped", dropped)
	}
	return out
}

// merge folds pack creations and cancellations per listing and collects
// the listings to expand into sales. Gacha folds drop the last prize unit
// once per listing.
func merge(recs []Record) ([]Record, []sellTemplate) {
	type key struct {
		t  Type
		id int64
	}
	at := map[key]int{}
	var out []Record
	var templates []sellTemplate
	for _, rec := range recs {
		if rec.Listing == nil {
			out = append(out, rec)
			continue
		}
		k := key{rec.Type, rec.Listing.ID}
		switch rec.Type {
		case TypeMakeGacha, TypeCancelGacha:
			if i, ok := at[k]; ok {
				out[i].Amount += rec.Amount
				continue
			}
			m := packRecord(rec)
			m.Amount--
			at[k] = len(out)
			out = append(out, m)
			if rec.Type == TypeMakeGacha {
				templates = append(templates, template(m, TypeSellGacha))
			}
		case TypeMakeBundle, TypeCancelBundle:
			if i, ok := at[k]; ok {
				out[i].Amount += rec.Amount
				continue
			}
			m := packRecord(rec)
			at[k] = len(out)
			out = append(out, m)
			if rec.Type == TypeMakeBundle {
				templates = append(templates, template(m, TypeSellBundle))
			}
		case TypeSwap, TypeMakeAuction:
			out = append(out, rec)
			if _, ok := at[k]; ok {
				continue
			}
			at[k] = len(out) - 1
			sell := TypeSell
			if rec.Type == TypeMakeAuction {
				sell = TypeSellAuction
			}
			templates = append(templates, template(rec, sell))
		default:
			out = append(out, rec)
		}
	}
	return out, templates
}

// packRecord strips the token of a record that stands for a whole pack.
func packRecord(rec Record) Record {
	rec.TokenID = nil
	rec.TokenName = ""
	return rec
}

func template(rec Record, t Type) sellTemplate {
	l := *rec.Listing
	return sellTemplate{
		kind: l.Kind,
		id:   l.ID,
		rec:  Record{Type: t, TokenID: rec.TokenID, Price: rec.Price, Listing: &l},
	}
}

// expand turns each template into one sell record per collect call.
func (r *Reconstructor) expand(ctx context.Context, templates []sellTemplate) []Record {
	res := make([][]Record, len(templates))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, t := range templates {
		i, t := i, t
		g.Go(func() error {
			res[i] = r.expandOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	var out []Record
	for _, rs := range res {
		out = append(out, rs...)
	}
	return out
}

func (r *Reconstructor) expandOne(ctx context.Context, t sellTemplate) []Record {
	ops := r.lst.CollectOperations(ctx, t.kind, t.id)
	out := make([]Record, 0, len(ops))
	for _, c := range ops {
		rec := t.rec
		l := *t.rec.Listing
		rec.Listing = &l
		rec.Timestamp = c.Timestamp
		rec.Amount = c.Quantity
		if t.kind == listings.KindAuction {
			rec.Amount = 1
			switch c.Entrypoint {
			case "direct_purchase":
				rec.Price = c.Amount
			case "close_auction":
				if v, ok := r.lst.StoredValue(ctx, listings.KindAuction, t.id, listings.FieldStorePrice); ok {
					rec.Price = v
				}
			}
		}
		out = append(out, rec)
	}
	return out
}

// decorate fills token names and, for token history, aliases.
func (r *Reconstructor) decorate(ctx context.Context, recs []Record, sc scope) {
	if r.names == nil {
		return
	}
	names := map[int64]string{}
	aliases := map[string]string{}
	for i := range recs {
		rec := &recs[i]
		if rec.TokenID != nil {
			name, ok := names[*rec.TokenID]
			if !ok {
				name = r.names.TokenName(ctx, *rec.TokenID)
				names[*rec.TokenID] = name
			}
			rec.TokenName = name
		}
		if !sc.account() && rec.Address != "" {
			alias, ok := aliases[rec.Address]
			if !ok {
				alias = r.names.Alias(ctx, rec.Address)
				aliases[rec.Address] = alias
			}
			rec.Alias = alias
		}
	}
}

// sortNewestFirst orders by timestamp descending. Ties keep their order.
func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp > recs[j].Timestamp })
}
