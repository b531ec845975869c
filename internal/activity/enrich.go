package activity

import (
	"context"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/listings"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

func intParam(params string) (int64, bool) {
	return michelson.ParseAnd(params, michelson.DecodeInt)
}

func pairParam(params string) (first, second int64, ok bool) {
	n, err := michelson.Parse(params)
	if err != nil {
		return 0, 0, false
	}
	return michelson.DecodeIDPair(n)
}

// enrich builds the record of a leg moved by op. Lookups that fail leave
// the price or the listing unset.
func (r *Reconstructor) enrich(ctx context.Context, l leg, op indexer.Operation, sc scope) Record {
	rec := Record{
		Timestamp: l.timestamp,
		Type:      Type(op.Entrypoint),
		TokenID:   ptr(l.tx.TokenID),
		Amount:    l.tx.Amount,
	}
	// The receiving side, except for listing creations where the seller sends.
	party := l.tx.To

	switch op.Entrypoint {
	case "collect":
		rec.Price = op.Amount
		if _, id, ok := pairParam(op.Parameters); ok {
			rec.Listing = &ListingRef{Kind: listings.KindSwap, ID: id}
		}
	case "swap":
		party = l.tx.From
		if p, ok := michelson.ParseAnd(op.Parameters, michelson.DecodeSwapParams); ok {
			rec.Price = p.Price
		}
		r.recoverListing(ctx, &rec, listings.KindSwap, op)
	case "cancel_swap":
		r.storedListing(ctx, &rec, listings.KindSwap, op.Parameters, listings.FieldSwapPrice)

	case "direct_purchase":
		rec.Type = TypeCollectAuction
		rec.Price = op.Amount
		if id, ok := intParam(op.Parameters); ok {
			rec.Listing = &ListingRef{Kind: listings.KindAuction, ID: id}
		}
	case "close_auction":
		rec.Type = TypeCollectAuction
		r.storedListing(ctx, &rec, listings.KindAuction, op.Parameters, listings.FieldStorePrice)
	case "make_auction":
		party = l.tx.From
		if p, ok := michelson.ParseAnd(op.Parameters, michelson.DecodeMakeAuctionParams); ok {
			rec.Price = p.StartPrice
		}
		r.recoverListing(ctx, &rec, listings.KindAuction, op)
	case "cancel_auction":
		r.storedListing(ctx, &rec, listings.KindAuction, op.Parameters, listings.FieldStartPrice)

	case "collect_bundle":
		rec.Price = op.Amount
		if _, id, ok := pairParam(op.Parameters); ok {
			rec.Listing = &ListingRef{Kind: listings.KindBundle, ID: id}
		}
	case "make_bundle":
		party = l.tx.From
		if p, ok := michelson.ParseAnd(op.Parameters, michelson.DecodeMakeBundleParams); ok {
			rec.Price = p.Price
		}
		r.recoverListing(ctx, &rec, listings.KindBundle, op)
	case "cancel_bundle":
		r.storedListing(ctx, &rec, listings.KindBundle, op.Parameters, listings.FieldBundlePrice)

	case "oracle_gacha":
		rec.Type = TypeCollectGacha
		player := l.tx.To
		if sc.account() {
			player = sc.address
		}
		// One oracle call may settle plays of several gachas; the first play
		// of the player decides.
		if play, ok := r.lst.OraclePlay(ctx, op.BlockLevel, player); ok {
			rec.Listing = &ListingRef{Kind: listings.KindGacha, ID: play.GachaID}
			if v, ok := r.lst.StoredValue(ctx, listings.KindGacha, play.GachaID, listings.FieldGachaPrice); ok {
				rec.Price = v
			}
		}
	case "make_gacha":
		party = l.tx.From
		layout := r.dep.Gacha.Resolve(versions.ByBlockLevel(op.BlockLevel)).ParamsLayout
		if n, err := michelson.Parse(op.Parameters); err == nil {
			if p, ok := michelson.DecodeMakeGachaParams(n, layout); ok {
				rec.Price = p.Price
			}
		}
		r.recoverListing(ctx, &rec, listings.KindGacha, op)
	case "cancel_gacha":
		r.storedListing(ctx, &rec, listings.KindGacha, op.Parameters, listings.FieldGachaPrice)
	}

	if rec.Listing != nil && rec.Listing.Kind != listings.KindSwap {
		rec.Listing.Title = r.lst.Title(ctx, rec.Listing.Kind, rec.Listing.ID)
	}
	if !sc.account() {
		rec.Address = party
	}
	return rec
}

func (r *Reconstructor) recoverListing(ctx context.Context, rec *Record, kind listings.Kind, op indexer.Operation) {
	if id, ok := r.lst.RecoverID(ctx, kind, op.BlockLevel, op.GroupHash); ok {
		rec.Listing = &ListingRef{Kind: kind, ID: id}
	}
}

// storedListing reads the listing id from a cancel or close call and its
// price from the last stored value of the listing.
func (r *Reconstructor) storedListing(ctx context.Context, rec *Record, kind listings.Kind, params, field string) {
	id, ok := intParam(params)
	if !ok {
		return
	}
	rec.Listing = &ListingRef{Kind: kind, ID: id}
	if v, ok := r.lst.StoredValue(ctx, kind, id, field); ok {
		rec.Price = v
	}
}
