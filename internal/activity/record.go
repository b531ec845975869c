// Package activity rebuilds the history of a token or an account from the
// NFT contract's mint and transfer calls and the marketplace calls that
// triggered them.
package activity

import "github.com/AIAleph/mvp_market_context/internal/listings"

// Type classifies a record. Marketplace records reuse the entrypoint name
// except where noted.
type Type string

const (
	TypeMint    Type = "mint"
	TypeSend    Type = "send"
	TypeReceive Type = "receive"
	TypeBurn    Type = "burn"

	TypeCollect    Type = "collect"
	TypeSwap       Type = "swap"
	TypeCancelSwap Type = "cancel_swap"
	TypeSell       Type = "sell"

	// TypeCollectAuction covers direct_purchase and close_auction.
	TypeCollectAuction Type = "collect_auction"
	TypeMakeAuction    Type = "make_auction"
	TypeCancelAuction  Type = "cancel_auction"
	TypeSellAuction    Type = "sell_auction"

	TypeMakeBundle    Type = "make_bundle"
	TypeCollectBundle Type = "collect_bundle"
	TypeCancelBundle  Type = "cancel_bundle"
	TypeSellBundle    Type = "sell_bundle"

	// TypeCollectGacha is recorded for the oracle_gacha call that settles a play.
	TypeCollectGacha Type = "collect_gacha"
	TypeMakeGacha    Type = "make_gacha"
	TypeCancelGacha  Type = "cancel_gacha"
	TypeSellGacha    Type = "sell_gacha"
)

// ListingRef points a record at the listing it came from.
type ListingRef struct {
	Kind  listings.Kind `json:"kind"`
	ID    int64         `json:"id"`
	Title string        `json:"title,omitempty"`
}

// Record is one activity entry. Timestamp is in seconds and Price in mutez.
// Address and Alias are set for token history only.
type Record struct {
	Timestamp int64       `json:"timestamp"`
	Type      Type        `json:"type"`
	TokenID   *int64      `json:"tokenId,omitempty"`
	TokenName string      `json:"tokenName,omitempty"`
	Address   string      `json:"address,omitempty"`
	Alias     string      `json:"alias,omitempty"`
	Amount    int64       `json:"amount"`
	Price     int64       `json:"price"`
	Listing   *ListingRef `json:"listing,omitempty"`
}

// sellTemplate is expanded into one record per collect call on a listing.
type sellTemplate struct {
	kind listings.Kind
	id   int64
	rec  Record
}
