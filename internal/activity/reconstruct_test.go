package activity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AIAleph/mvp_market_context/fixtures/micheline"
	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/indexer/indexertest"
	"github.com/AIAleph/mvp_market_context/internal/listings"
	"github.com/AIAleph/mvp_market_context/internal/snapshot"
	"github.com/AIAleph/mvp_market_context/internal/snapshot/snapshottest"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

const (
	addrX   = "tz1P2fUQLaHmCpEfK4cTTuYrbHn1NJYGzAkd"
	addrY   = "tz1SR4yPS3H9CAaHFv1s1bXw4NQjUkQo3qVC"
	packedX = "0x000025303b46515c67727d88939ea9b4bfcad5e0ebf6"
	packedY = "0x00004a55606b76818c97a2adb8c3ced9e4effa05101b"
	packedB = "0x0000b28066369a8ed09ba9d3d47f19598440266013f0"
	// escrow stands in for the marketplace contracts holding listed tokens.
	escrow = "0x00006f7a85909ba6b1bcc7d2dde8f3fe09141f2a3540"

	gachaV1 = "KT1GsdckBVCsgqp6ERYLnyawyXACAAQspPv6"
)

func transfer(from string, legs ...string) string {
	return "{ Pair " + from + " { " + strings.Join(legs, " ; ") + " } }"
}

func to(addr string, tokenID, amount string) string {
	return "Pair " + addr + " (Pair " + tokenID + " " + amount + ")"
}

type market struct {
	ledger *indexertest.Ledger
	snap   *snapshottest.Static
	dep    versions.Deployment
}

func newMarket() *market {
	return &market{ledger: indexertest.New(), snap: snapshottest.New(), dep: versions.Mainnet()}
}

func (m *market) call(op indexer.Operation) {
	if op.Destination == "" {
		op.Destination = m.dep.NFT
	}
	m.ledger.AddOp(op)
}

func (m *market) reconstructor() *Reconstructor {
	lst := listings.New(m.ledger, m.snap, m.dep, nil, nil)
	return New(m.ledger, m.dep, lst, nil)
}

// mintAndSend mints 3 of token 42 to X and has X send one to Y.
func (m *market) mintAndSend() {
	m.call(indexer.Operation{Entrypoint: "mint", Parameters: strings.TrimSpace(micheline.MintParams), Timestamp: 1000000, Counter: 1, GroupHash: "opMint"})
	m.call(indexer.Operation{Entrypoint: "transfer", Parameters: transfer(packedX, to(packedY, "42", "1")), Timestamp: 2000000, Counter: 2, GroupHash: "opSend"})
}

// swapAndCollect lists 2 of token 42 as swap 7 and has Y collect one.
func (m *market) swapAndCollect() {
	m.snap.SetStorage(m.dep.Metaverse, 799, snapshot.Document{"swap_id": "7"})
	m.call(indexer.Operation{Entrypoint: "swap", Destination: m.dep.Metaverse, Parameters: strings.TrimSpace(micheline.SwapParams),
		Timestamp: 3000000, BlockLevel: 800, Counter: 10, GroupHash: "opSwap"})
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: transfer(packedX, to(escrow, "42", "2")),
		Timestamp: 3000000, BlockLevel: 800, Counter: 10, GroupHash: "opSwap"})
	m.call(indexer.Operation{Entrypoint: "collect", Destination: m.dep.Metaverse, Parameters: "Pair 1 7", Amount: 1500000,
		Timestamp: 4000000, BlockLevel: 900, Counter: 20, GroupHash: "opCollect", Source: addrY})
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: transfer(escrow, to(packedY, "42", "1")),
		Timestamp: 4000000, BlockLevel: 900, Counter: 20, GroupHash: "opCollect"})
}

func types(recs []Record) []Type {
	out := make([]Type, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func TestMintThenSend(t *testing.T) {
	m := newMarket()
	m.mintAndSend()
	r := m.reconstructor()
	ctx := context.Background()

	x := r.AccountActivity(ctx, addrX)
	require.Equal(t, []Type{TypeSend, TypeMint}, types(x))
	assert.Equal(t, int64(1), x[0].Amount)
	assert.Equal(t, int64(3), x[1].Amount)
	assert.Equal(t, int64(42), *x[1].TokenID)
	assert.Equal(t, int64(1000), x[1].Timestamp)

	y := r.AccountActivity(ctx, addrY)
	require.Equal(t, []Type{TypeReceive}, types(y))
	assert.Equal(t, int64(1), y[0].Amount)

	tok := r.TokenActivity(ctx, 42)
	require.Equal(t, []Type{TypeSend, TypeReceive, TypeMint}, types(tok))
	assert.Equal(t, addrX, tok[0].Address)
	assert.Equal(t, addrY, tok[1].Address)
	assert.Equal(t, addrX, tok[2].Address)

	assert.Empty(t, r.TokenActivity(ctx, 4))
}

func TestBurnIsNotASend(t *testing.T) {
	m := newMarket()
	m.call(indexer.Operation{Entrypoint: "transfer", Parameters: transfer(packedX, to(packedB, "42", "2")), Timestamp: 5000000, GroupHash: "opBurn"})
	r := m.reconstructor()
	ctx := context.Background()

	x := r.AccountActivity(ctx, addrX)
	require.Len(t, x, 1)
	assert.Equal(t, TypeBurn, x[0].Type)

	tok := r.TokenActivity(ctx, 42)
	require.Len(t, tok, 1)
	assert.Equal(t, TypeBurn, tok[0].Type)
	assert.Equal(t, addrX, tok[0].Address)
}

func TestQuotedAddressTransfers(t *testing.T) {
	m := newMarket()
	m.call(indexer.Operation{Entrypoint: "transfer", Parameters: transfer(`"`+addrY+`"`, to(`"`+addrX+`"`, "43", "2")), Timestamp: 5000000, GroupHash: "opQuoted"})
	x := m.reconstructor().AccountActivity(context.Background(), addrX)
	require.Len(t, x, 1)
	assert.Equal(t, TypeReceive, x[0].Type)
	assert.Equal(t, int64(43), *x[0].TokenID)
}

func TestSwapIsExpandedIntoSales(t *testing.T) {
	m := newMarket()
	m.swapAndCollect()
	r := m.reconstructor()
	ctx := context.Background()

	x := r.AccountActivity(ctx, addrX)
	require.Equal(t, []Type{TypeSell, TypeSwap}, types(x))
	sell, swap := x[0], x[1]
	assert.Equal(t, &ListingRef{Kind: listings.KindSwap, ID: 7}, swap.Listing)
	assert.Equal(t, int64(2), swap.Amount)
	assert.Equal(t, int64(1500000), swap.Price)
	assert.Equal(t, int64(4000), sell.Timestamp)
	assert.Equal(t, int64(1), sell.Amount)
	assert.Equal(t, int64(1500000), sell.Price)
	assert.Equal(t, int64(42), *sell.TokenID)

	y := r.AccountActivity(ctx, addrY)
	require.Equal(t, []Type{TypeCollect}, types(y))
	assert.Equal(t, int64(1500000), y[0].Price)
	assert.Equal(t, int64(7), y[0].Listing.ID)

	tok := r.TokenActivity(ctx, 42)
	require.Equal(t, []Type{TypeCollect, TypeSwap}, types(tok))
	assert.Equal(t, addrY, tok[0].Address, "collector receives")
	assert.Equal(t, addrX, tok[1].Address, "seller sends")
}

func TestGachaCreationMergesLastPrize(t *testing.T) {
	m := newMarket()
	m.snap.SetStorage(gachaV1, 1699999, snapshot.Document{"gacha_id": "12"})
	m.call(indexer.Operation{Entrypoint: "make_gacha", Destination: gachaV1, Parameters: strings.TrimSpace(micheline.MakeGachaCancelTime),
		Timestamp: 5000000, BlockLevel: 1700000, Counter: 50, GroupHash: "opGacha"})
	legs := transfer(packedX, to(escrow, "42", "5"), to(escrow, "44", "1"))
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: legs,
		Timestamp: 5000000, BlockLevel: 1700000, Counter: 50, GroupHash: "opGacha"})
	m.call(indexer.Operation{Entrypoint: "play_gacha", Destination: gachaV1, Parameters: "Pair 2 12", Amount: 1000000,
		Timestamp: 6000000, BlockLevel: 1700100, Counter: 60, GroupHash: "opPlay"})

	x := m.reconstructor().AccountActivity(context.Background(), addrX)
	require.Equal(t, []Type{TypeSellGacha, TypeMakeGacha}, types(x))
	made := x[1]
	assert.Equal(t, int64(5), made.Amount)
	assert.Nil(t, made.TokenID)
	assert.Equal(t, int64(500000), made.Price)
	assert.Equal(t, &ListingRef{Kind: listings.KindGacha, ID: 12}, made.Listing)
	assert.Equal(t, int64(2), x[0].Amount)
	assert.Equal(t, int64(6000), x[0].Timestamp)
}

func TestBundleCreationSumsLegs(t *testing.T) {
	m := newMarket()
	m.snap.SetStorage(m.dep.Bundle, 1299, snapshot.Document{"bundle_id": "4"})
	m.call(indexer.Operation{Entrypoint: "make_bundle", Destination: m.dep.Bundle, Parameters: strings.TrimSpace(micheline.MakeBundleParams),
		Timestamp: 5500000, BlockLevel: 1300, Counter: 55, GroupHash: "opBundle"})
	legs := transfer(packedX, to(escrow, "42", "2"), to(escrow, "43", "4"))
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: legs,
		Timestamp: 5500000, BlockLevel: 1300, Counter: 55, GroupHash: "opBundle"})

	x := m.reconstructor().AccountActivity(context.Background(), addrX)
	require.Equal(t, []Type{TypeMakeBundle}, types(x))
	assert.Equal(t, int64(6), x[0].Amount)
	assert.Nil(t, x[0].TokenID)
	assert.Equal(t, int64(3000000), x[0].Price)
	assert.Equal(t, &ListingRef{Kind: listings.KindBundle, ID: 4}, x[0].Listing)
}

func TestGachaCancellationMergesLastPrize(t *testing.T) {
	m := newMarket()
	m.snap.SetValue(m.dep.Gacha.Resolve(versions.ByID(12)).GachaMap, "12", snapshot.Document{listings.FieldGachaPrice: "500000"})
	m.call(indexer.Operation{Entrypoint: "cancel_gacha", Destination: gachaV1, Parameters: "12",
		Timestamp: 7500000, BlockLevel: 1700300, Counter: 75, GroupHash: "opCancelGacha"})
	legs := transfer(escrow, to(packedX, "42", "3"), to(packedX, "44", "1"))
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: legs,
		Timestamp: 7500000, BlockLevel: 1700300, Counter: 75, GroupHash: "opCancelGacha"})

	x := m.reconstructor().AccountActivity(context.Background(), addrX)
	require.Equal(t, []Type{TypeCancelGacha}, types(x))
	assert.Equal(t, int64(3), x[0].Amount)
	assert.Nil(t, x[0].TokenID)
	assert.Equal(t, int64(500000), x[0].Price)
	assert.Equal(t, &ListingRef{Kind: listings.KindGacha, ID: 12}, x[0].Listing)
}

func TestCancelSwapPriceFromStoredValue(t *testing.T) {
	m := newMarket()
	m.snap.SetValue(m.dep.SwapMap, "7", snapshot.Document{listings.FieldSwapPrice: "1500000"})
	m.call(indexer.Operation{Entrypoint: "cancel_swap", Destination: m.dep.Metaverse, Parameters: "7",
		Timestamp: 7000000, BlockLevel: 1000, Counter: 70, GroupHash: "opCancel"})
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: transfer(escrow, to(packedX, "42", "1")),
		Timestamp: 7000000, BlockLevel: 1000, Counter: 70, GroupHash: "opCancel"})

	x := m.reconstructor().AccountActivity(context.Background(), addrX)
	require.Len(t, x, 1)
	assert.Equal(t, TypeCancelSwap, x[0].Type)
	assert.Equal(t, int64(1500000), x[0].Price)
}

func TestUnattributedLegIsDropped(t *testing.T) {
	m := newMarket()
	m.mintAndSend()
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: transfer(escrow, to(packedX, "42", "1")),
		Timestamp: 8000000, Counter: 80, GroupHash: "opUnknown"})

	x := m.reconstructor().AccountActivity(context.Background(), addrX)
	assert.Equal(t, []Type{TypeSend, TypeMint}, types(x))
}

func TestReconstructionIsDeterministic(t *testing.T) {
	m := newMarket()
	m.mintAndSend()
	m.swapAndCollect()
	// Same second as the send.
	m.call(indexer.Operation{Entrypoint: "transfer", Parameters: transfer(packedY, to(packedX, "42", "1")), Timestamp: 2000000, Counter: 3, GroupHash: "opBack"})
	r := m.reconstructor()
	ctx := context.Background()

	first := r.AccountActivity(ctx, addrX)
	second := r.AccountActivity(ctx, addrX)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, r.TokenActivity(ctx, 42), r.TokenActivity(ctx, 42))
}

func TestInvalidAddress(t *testing.T) {
	assert.Nil(t, newMarket().reconstructor().AccountActivity(context.Background(), "tz1nope"))
}

type listingsMock struct{ mock.Mock }

func (m *listingsMock) RecoverID(ctx context.Context, kind listings.Kind, level int64, group string) (int64, bool) {
	args := m.Called(kind, level, group)
	return args.Get(0).(int64), args.Bool(1)
}

func (m *listingsMock) StoredValue(ctx context.Context, kind listings.Kind, id int64, field string) (int64, bool) {
	args := m.Called(kind, id, field)
	return args.Get(0).(int64), args.Bool(1)
}

func (m *listingsMock) Title(ctx context.Context, kind listings.Kind, id int64) string {
	return m.Called(kind, id).String(0)
}

func (m *listingsMock) CollectOperations(ctx context.Context, kind listings.Kind, id int64) []listings.CollectOp {
	return m.Called(kind, id).Get(0).([]listings.CollectOp)
}

func (m *listingsMock) OraclePlay(ctx context.Context, level int64, player string) (listings.GachaPlay, bool) {
	args := m.Called(level, player)
	return args.Get(0).(listings.GachaPlay), args.Bool(1)
}

func TestFailedLookupsDegradeRecord(t *testing.T) {
	m := newMarket()
	m.call(indexer.Operation{Entrypoint: "make_auction", Destination: m.dep.Auction, Parameters: strings.TrimSpace(micheline.MakeAuctionParams),
		Timestamp: 9000000, BlockLevel: 1200, Counter: 90, GroupHash: "opAuction"})
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: transfer(packedX, to(escrow, "42", "1")),
		Timestamp: 9000000, BlockLevel: 1200, Counter: 90, GroupHash: "opAuction"})
	m.call(indexer.Operation{Entrypoint: "oracle_gacha", Destination: gachaV1, Parameters: "Unit",
		Timestamp: 9500000, BlockLevel: 1700200, Counter: 95, GroupHash: "opOracle"})
	m.call(indexer.Operation{Entrypoint: "transfer", Internal: true, Parameters: transfer(escrow, to(packedX, "43", "1")),
		Timestamp: 9500000, BlockLevel: 1700200, Counter: 95, GroupHash: "opOracle"})

	lst := new(listingsMock)
	lst.On("RecoverID", listings.KindAuction, int64(1200), "opAuction").Return(int64(0), false)
	lst.On("OraclePlay", int64(1700200), addrX).Return(listings.GachaPlay{}, false)
	r := New(m.ledger, m.dep, lst, nil)

	x := r.AccountActivity(context.Background(), addrX)
	require.Equal(t, []Type{TypeCollectGacha, TypeMakeAuction}, types(x))
	assert.Nil(t, x[0].Listing)
	assert.Zero(t, x[0].Price)
	assert.Nil(t, x[1].Listing)
	assert.Equal(t, int64(1000000), x[1].Price, "price still read from the call")
	lst.AssertExpectations(t)
}
