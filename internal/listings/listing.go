// Package listings decodes swaps, auctions, bundles and gachas from the
// marketplace big maps and recovers the ids that make_* calls never echo.
package listings

import (
	"github.com/AIAleph/mvp_market_context/internal/metadata"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
)

// Kind names a listing mechanism.
type Kind string

const (
	KindSwap    Kind = "swap"
	KindAuction Kind = "auction"
	KindBundle  Kind = "bundle"
	KindGacha   Kind = "gacha"
)

// Pack maps a mechanism to its metadata collection. Swaps carry no pack
// metadata.
func (k Kind) Pack() (metadata.PackKind, bool) {
	switch k {
	case KindAuction:
		return metadata.PackAuction, true
	case KindBundle:
		return metadata.PackBundle, true
	case KindGacha:
		return metadata.PackGacha, true
	}
	return "", false
}

// Listing holds the fields shared by every mechanism. Items maps token id
// to the quantity offered per unit.
type Listing struct {
	Kind      Kind            `json:"kind"`
	ID        int64           `json:"id"`
	Issuer    string          `json:"issuer"`
	Alias     string          `json:"alias"`
	UnitPrice int64           `json:"unitPrice"`
	Items     map[int64]int64 `json:"items"`
	Title     string          `json:"title,omitempty"`

	// Hashes holds token metadata CIDs, filled by detail lookups only.
	Hashes map[int64]string `json:"ipfsHashes,omitempty"`
}

type Swap struct {
	Listing
	TokenID int64             `json:"tokenId"`
	Amount  int64             `json:"amount"`
	Shares  []michelson.Share `json:"-"`
}

// Bid is one entry of an auction's price history. Timestamp is in seconds.
type Bid struct {
	Bidder    string `json:"bidder"`
	Alias     string `json:"alias"`
	Amount    int64  `json:"bidPrice"`
	Timestamp int64  `json:"timestamp"`
}

type Auction struct {
	Listing
	TokenID           int64  `json:"tokenId"`
	CurrentBid        int64  `json:"currentBidPrice"`
	CurrentBidder     string `json:"currentBidder"`
	CurrentStorePrice int64  `json:"currentStorePrice"`
	DirectPrice       int64  `json:"directPrice"`
	DueTime           int64  `json:"dueTime"`
	RaisePercentage   int64  `json:"raisePercentage"`
	StartPrice        int64  `json:"startPrice"`
	PackHash          string `json:"packIpfsHash"`
	Bids              []Bid  `json:"priceHistory,omitempty"`
}

type Bundle struct {
	Listing
	Amount   int64  `json:"bundleAmount"`
	PackHash string `json:"packIpfsHash"`
}

// Prize is one gacha item with remaining and total counts.
type Prize struct {
	TokenID int64 `json:"tokenId"`
	Remain  int64 `json:"remain"`
	Total   int64 `json:"total"`
}

type Gacha struct {
	Listing
	Amount           int64   `json:"gachaAmount"`
	Total            int64   `json:"gachaTotal"`
	RemainingPlays   int64   `json:"gachaPlayRemains"`
	LastPrizeTokenID int64   `json:"lastPrizeTokenId"`
	CancelTime       int64   `json:"cancelTime"`
	IssueTime        int64   `json:"issueTime"`
	Prizes           []Prize `json:"gachaItems"`
	PackHash         string  `json:"packIpfsHash"`

	// Remain is the count left for the token a Sales lookup was made for,
	// including the last prize slot.
	Remain int64 `json:"remain,omitempty"`
}

// Sales groups the active listings offering one token.
type Sales struct {
	Swaps    []Swap    `json:"swaps"`
	Auctions []Auction `json:"auctions"`
	Bundles  []Bundle  `json:"bundles"`
	Gachas   []Gacha   `json:"gachas"`
}

// CollectOp is an applied call that took units out of a listing. Quantity
// is the number of units, Amount the attached mutez.
type CollectOp struct {
	Timestamp  int64  `json:"timestamp"`
	Entrypoint string `json:"entrypoint"`
	GroupHash  string `json:"operationGroupHash"`
	Quantity   int64  `json:"quantity"`
	Amount     int64  `json:"amount"`
}

// GachaPlay is a play map entry.
type GachaPlay struct {
	Key     int64  `json:"key"`
	Amount  int64  `json:"gachaAmount"`
	GachaID int64  `json:"gachaId"`
	Player  string `json:"player"`
}

func swapFrom(id int64, s michelson.SwapStorage) Swap {
	return Swap{
		Listing: Listing{
			Kind:      KindSwap,
			ID:        id,
			Issuer:    s.Issuer,
			UnitPrice: s.Price,
			Items:     map[int64]int64{s.TokenID: 1},
		},
		TokenID: s.TokenID,
		Amount:  s.Amount,
		Shares:  s.Shares,
	}
}

func auctionFrom(id int64, a michelson.AuctionStorage) Auction {
	return Auction{
		Listing: Listing{
			Kind:      KindAuction,
			ID:        id,
			Issuer:    a.Issuer,
			UnitPrice: a.CurrentStorePrice,
			Items:     map[int64]int64{a.TokenID: 1},
		},
		TokenID:           a.TokenID,
		CurrentBid:        a.CurrentBid,
		CurrentBidder:     a.CurrentBidder,
		CurrentStorePrice: a.CurrentStorePrice,
		DirectPrice:       a.DirectPrice,
		DueTime:           a.DueTime,
		RaisePercentage:   a.RaisePercentage,
		StartPrice:        a.StartPrice,
		PackHash:          a.IPFSHash,
	}
}

func bundleFrom(id int64, b michelson.BundleStorage) Bundle {
	items := make(map[int64]int64, len(b.Items))
	for _, it := range b.Items {
		items[it.TokenID] += it.Amount
	}
	return Bundle{
		Listing: Listing{
			Kind:      KindBundle,
			ID:        id,
			Issuer:    b.Issuer,
			UnitPrice: b.Price,
			Items:     items,
		},
		Amount:   b.Amount,
		PackHash: b.IPFSHash,
	}
}

func gachaFrom(id int64, g michelson.GachaStorage) Gacha {
	out := Gacha{
		Listing: Listing{
			Kind:      KindGacha,
			ID:        id,
			Issuer:    g.Issuer,
			UnitPrice: g.Price,
			Items:     make(map[int64]int64, len(g.Items)),
		},
		Amount:           g.Amount,
		RemainingPlays:   g.PlayRemains,
		LastPrizeTokenID: g.LastPrizeTokenID,
		CancelTime:       g.CancelTime,
		IssueTime:        g.IssueTime,
		Prizes:           make([]Prize, len(g.Items)),
		PackHash:         g.IPFSHash,
	}
	for i, it := range g.Items {
		out.Items[it.TokenID] = it.Remain
		out.Prizes[i] = Prize{TokenID: it.TokenID, Remain: it.Remain, Total: it.Total}
		out.Total += it.Total
	}
	return out
}
