package michelson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AIAleph/mvp_market_context/fixtures/micheline"
)

const (
	issuerX = "tz1P2fUQLaHmCpEfK4cTTuYrbHn1NJYGzAkd"
	buyerY  = "tz1SR4yPS3H9CAaHFv1s1bXw4NQjUkQo3qVC"
)

func TestDecodeSwap(t *testing.T) {
	p, ok := ParseAnd(micheline.SwapParams, DecodeSwapParams)
	require.True(t, ok)
	assert.Equal(t, SwapParams{Amount: 3, TokenID: 42, Shares: []Share{{issuerX, 100}}, Price: 1500000}, p)

	s, ok := ParseAnd(micheline.SwapStorage, DecodeSwapStorage)
	require.True(t, ok)
	assert.Equal(t, int64(3), s.Amount)
	assert.Equal(t, int64(42), s.TokenID)
	assert.Equal(t, issuerX, s.Issuer)
	assert.Equal(t, int64(1500000), s.Price)

	// A swap storage value is not a swap parameter.
	_, ok = ParseAnd(micheline.SwapStorage, DecodeSwapParams)
	assert.False(t, ok)
}

func TestDecodeAuction(t *testing.T) {
	a, ok := ParseAnd(micheline.AuctionStorage, DecodeAuctionStorage)
	require.True(t, ok)
	assert.Equal(t, AuctionStorage{
		TokenID:           42,
		CurrentBid:        2000000,
		CurrentBidder:     buyerY,
		CurrentStorePrice: 2100000,
		DirectPrice:       5000000,
		DueTime:           1632000000,
		Issuer:            issuerX,
		IPFSHash:          "QmAuction",
		RaisePercentage:   10,
		StartPrice:        1000000,
	}, a)

	m, ok := ParseAnd(micheline.MakeAuctionParams, DecodeMakeAuctionParams)
	require.True(t, ok)
	assert.Equal(t, int64(1000000), m.StartPrice)
	assert.Equal(t, int64(5000000), m.DirectPrice)
	assert.Equal(t, "QmAuction", m.IPFSHash)
}

func TestDecodeBundle(t *testing.T) {
	b, ok := ParseAnd(micheline.BundleStorage, DecodeBundleStorage)
	require.True(t, ok)
	assert.Equal(t, int64(2), b.Amount)
	assert.Equal(t, []Item{{42, 1}, {43, 2}}, b.Items)
	assert.Equal(t, issuerX, b.Issuer)
	assert.Equal(t, int64(3000000), b.Price)

	m, ok := ParseAnd(micheline.MakeBundleParams, DecodeMakeBundleParams)
	require.True(t, ok)
	assert.Equal(t, "QmBundle", m.IPFSHash)
	assert.Equal(t, int64(3000000), m.Price)
	assert.Len(t, m.Items, 2)
}

func TestDecodeGacha(t *testing.T) {
	g, ok := ParseAnd(micheline.GachaStorage, DecodeGachaStorage)
	require.True(t, ok)
	assert.Equal(t, int64(1640000000), g.CancelTime)
	assert.Equal(t, int64(10), g.Amount)
	assert.Equal(t, []GachaItem{{42, 3, 5}, {43, 1, 1}}, g.Items)
	assert.Equal(t, int64(4), g.PlayRemains)
	assert.Equal(t, issuerX, g.Issuer)
	assert.Equal(t, int64(44), g.LastPrizeTokenID)
	assert.Equal(t, int64(500000), g.Price)

	basic, ok := ParseAnd(micheline.MakeGachaBasic, func(n Node) (MakeGachaParams, bool) {
		return DecodeMakeGachaParams(n, GachaLayoutBasic)
	})
	require.True(t, ok)
	assert.Equal(t, int64(500000), basic.Price)
	assert.Equal(t, int64(44), basic.LastPrizeTokenID)
	assert.Empty(t, basic.CancelDate)

	withDate, ok := ParseAnd(micheline.MakeGachaCancelTime, func(n Node) (MakeGachaParams, bool) {
		return DecodeMakeGachaParams(n, GachaLayoutCancelTime)
	})
	require.True(t, ok)
	assert.Equal(t, int64(500000), withDate.Price)
	assert.Equal(t, "2021-12-31T00:00:00Z", withDate.CancelDate)

	// Each layout rejects the other's shape.
	_, ok = DecodeMakeGachaParams(MustParse(micheline.MakeGachaCancelTime), GachaLayoutBasic)
	assert.False(t, ok)
	_, ok = DecodeMakeGachaParams(MustParse(micheline.MakeGachaBasic), GachaLayoutCancelTime)
	assert.False(t, ok)

	play, ok := ParseAnd(micheline.GachaPlay, DecodeGachaPlay)
	require.True(t, ok)
	assert.Equal(t, GachaPlay{Amount: 1, GachaID: 7, Player: buyerY}, play)
}

func TestDecodeTokenMetadataAndRoyalty(t *testing.T) {
	md, ok := ParseAnd(micheline.TokenMetadata, DecodeTokenMetadata)
	require.True(t, ok)
	assert.Equal(t, TokenMetadata{TokenID: 42, IPFSHash: "QmTest123"}, md)

	r, ok := ParseAnd(micheline.Royalty, DecodeRoyalty)
	require.True(t, ok)
	assert.Equal(t, issuerX, r.Minter)
	assert.Equal(t, int64(150), r.TotalShare)
	assert.Equal(t, []Share{{buyerY, 50}, {issuerX, 100}}, r.Shares)
}

func TestDecodeMintAndTransfer(t *testing.T) {
	m, ok := ParseAnd(micheline.MintParams, DecodeMintParams)
	require.True(t, ok)
	assert.Equal(t, MintParams{To: issuerX, Amount: 3, TokenID: 42, IPFSHash: "QmTest123"}, m)

	txs, ok := ParseAnd(micheline.TransferParams, DecodeTransferParams)
	require.True(t, ok)
	assert.Equal(t, []TransferTx{
		{From: issuerX, To: buyerY, TokenID: 42, Amount: 1},
		{From: issuerX, To: BurnAddress, TokenID: 42, Amount: 1},
		{From: buyerY, To: issuerX, TokenID: 43, Amount: 2},
	}, txs)

	_, ok = DecodeTransferParams(MustParse("{}"))
	assert.False(t, ok)
	_, ok = DecodeTransferParams(MustParse(`{ Pair "nope" { Pair "tz1P2fUQLaHmCpEfK4cTTuYrbHn1NJYGzAkd" (Pair 1 1) } }`))
	assert.False(t, ok)
}

func TestDecodeKeysAndIDs(t *testing.T) {
	k, ok := ParseAnd(micheline.LedgerKey, DecodeLedgerKey)
	require.True(t, ok)
	assert.Equal(t, LedgerKey{Owner: issuerX, TokenID: 42}, k)

	_, ok = ParseAnd(micheline.LedgerKey, DecodeDaoLedgerKey)
	assert.False(t, ok)
	owner, ok := DecodeDaoLedgerKey(MustParse("Pair 0x000025303b46515c67727d88939ea9b4bfcad5e0ebf6 0"))
	require.True(t, ok)
	assert.Equal(t, issuerX, owner)

	a, b, ok := DecodeIDPair(MustParse("Pair 2 17"))
	require.True(t, ok)
	assert.Equal(t, [2]int64{2, 17}, [2]int64{a, b})
	_, _, ok = DecodeIDPair(MustParse("17"))
	assert.False(t, ok)

	id, ok := DecodeInt(MustParse("17"))
	require.True(t, ok)
	assert.Equal(t, int64(17), id)
}

func TestParseAndFoldsSyntaxErrors(t *testing.T) {
	_, ok := ParseAnd("Pair (", DecodeLedgerKey)
	assert.False(t, ok)
}

func TestOverflowIsMismatch(t *testing.T) {
	_, ok := DecodeInt(MustParse("99999999999999999999999"))
	assert.False(t, ok)
}
