package michelson

// Typed projections of the storage and parameter layouts used by the
// marketplace contracts. Every Decode function returns ok=false unless all
// declared fields were found; callers treat that as "record not present".

// Share is one (address, share) royalty entry.
type Share struct {
	Address string
	Share   int64
}

// Item is one token id with a quantity.
type Item struct {
	TokenID int64
	Amount  int64
}

// GachaItem tracks remaining and total prizes for one token.
type GachaItem struct {
	TokenID int64
	Remain  int64
	Total   int64
}

type SwapParams struct {
	Amount  int64
	TokenID int64
	Shares  []Share
	Price   int64
}

type SwapStorage struct {
	Amount  int64
	TokenID int64
	Issuer  string
	Shares  []Share
	Price   int64
}

type AuctionStorage struct {
	TokenID           int64
	CurrentBid        int64
	CurrentBidder     string
	CurrentStorePrice int64
	DirectPrice       int64
	DueTime           int64
	Issuer            string
	IPFSHash          string
	RaisePercentage   int64
	StartPrice        int64
}

type MakeAuctionParams struct {
	TokenID         int64
	Duration        int64
	DirectPrice     int64
	IPFSHash        string
	RaisePercentage int64
	StartPrice      int64
}

type BundleStorage struct {
	Amount   int64
	Items    []Item
	Issuer   string
	IPFSHash string
	Price    int64
}

type MakeBundleParams struct {
	Amount   int64
	Items    []Item
	IPFSHash string
	Price    int64
}

type GachaStorage struct {
	CancelTime       int64
	Amount           int64
	Items            []GachaItem
	PlayRemains      int64
	IssueTime        int64
	Issuer           string
	LastPrizeTokenID int64
	IPFSHash         string
	Price            int64
}

// GachaLayout selects the make_gacha parameter shape of a deployment.
type GachaLayout uint8

const (
	// GachaLayoutBasic is Pair (Pair amount {items}) (Pair lastPrize (Pair ipfs price)).
	GachaLayoutBasic GachaLayout = iota
	// GachaLayoutCancelTime adds a quoted cancel date after the item map.
	GachaLayoutCancelTime
)

type MakeGachaParams struct {
	Amount           int64
	Items            []GachaItem
	CancelDate       string
	LastPrizeTokenID int64
	IPFSHash         string
	Price            int64
}

type GachaPlay struct {
	Amount  int64
	GachaID int64
	Player  string
}

type TokenMetadata struct {
	TokenID  int64
	IPFSHash string
}

type Royalty struct {
	Shares     []Share
	Minter     string
	TotalShare int64
}

type MintParams struct {
	To       string
	Amount   int64
	TokenID  int64
	IPFSHash string
}

// TransferTx is a single leg of a FA2 transfer batch.
type TransferTx struct {
	From    string
	To      string
	TokenID int64
	Amount  int64
}

type LedgerKey struct {
	Owner   string
	TokenID int64
}

func ints(ns ...Node) ([]int64, bool) {
	out := make([]int64, len(ns))
	for i, n := range ns {
		v, ok := n.Int()
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func shares(n Node) ([]Share, bool) {
	if n.Kind != KindSeq {
		return nil, false
	}
	out := make([]Share, 0, len(n.Items))
	for _, it := range n.Items {
		if !it.IsPrim("Elt", 2) {
			return nil, false
		}
		addr, ok := AddressOf(it.Args[0])
		if !ok {
			return nil, false
		}
		s, ok := it.Args[1].Int()
		if !ok {
			return nil, false
		}
		out = append(out, Share{Address: addr, Share: s})
	}
	return out, true
}

func items(n Node) ([]Item, bool) {
	if n.Kind != KindSeq {
		return nil, false
	}
	out := make([]Item, 0, len(n.Items))
	for _, it := range n.Items {
		if !it.IsPrim("Elt", 2) {
			return nil, false
		}
		v, ok := ints(it.Args[0], it.Args[1])
		if !ok {
			return nil, false
		}
		out = append(out, Item{TokenID: v[0], Amount: v[1]})
	}
	return out, true
}

func gachaItems(n Node) ([]GachaItem, bool) {
	if n.Kind != KindSeq {
		return nil, false
	}
	out := make([]GachaItem, 0, len(n.Items))
	for _, it := range n.Items {
		if !it.IsPrim("Elt", 2) {
			return nil, false
		}
		c := Comb(it.Args[1])
		if len(c) != 2 {
			return nil, false
		}
		v, ok := ints(it.Args[0], c[0], c[1])
		if !ok {
			return nil, false
		}
		out = append(out, GachaItem{TokenID: v[0], Remain: v[1], Total: v[2]})
	}
	return out, true
}

// DecodeSwapParams reads swap call parameters:
// Pair (Pair amount tokenId) (Pair { Elt addr share ; ... } price).
func DecodeSwapParams(n Node) (SwapParams, bool) {
	c := Comb(n)
	if len(c) != 3 {
		return SwapParams{}, false
	}
	head := Comb(c[0])
	if len(head) != 2 {
		return SwapParams{}, false
	}
	v, ok := ints(head[0], head[1], c[2])
	if !ok {
		return SwapParams{}, false
	}
	sh, ok := shares(c[1])
	if !ok {
		return SwapParams{}, false
	}
	return SwapParams{Amount: v[0], TokenID: v[1], Shares: sh, Price: v[2]}, true
}

// DecodeSwapStorage reads a swap map value:
// Pair amount tokenId ; issuer ; { Elt addr share } ; price.
func DecodeSwapStorage(n Node) (SwapStorage, bool) {
	c := Comb(n)
	if len(c) != 4 {
		return SwapStorage{}, false
	}
	head := Comb(c[0])
	if len(head) != 2 {
		return SwapStorage{}, false
	}
	v, ok := ints(head[0], head[1], c[3])
	if !ok {
		return SwapStorage{}, false
	}
	issuer, ok := AddressOf(c[1])
	if !ok {
		return SwapStorage{}, false
	}
	sh, ok := shares(c[2])
	if !ok {
		return SwapStorage{}, false
	}
	return SwapStorage{Amount: v[0], TokenID: v[1], Issuer: issuer, Shares: sh, Price: v[2]}, true
}

// DecodeAuctionStorage reads an auction map value:
// { Pair tokenId bid ; bidder ; storePrice ; directPrice } ;
// Pair dueTime issuer ; "ipfs" ; raisePercentage ; startPrice.
func DecodeAuctionStorage(n Node) (AuctionStorage, bool) {
	c := Comb(n)
	if len(c) != 5 {
		return AuctionStorage{}, false
	}
	var bid []Node
	switch c[0].Kind {
	case KindSeq:
		bid = c[0].Items
	case KindPrim:
		bid = Comb(c[0])
	}
	if len(bid) != 4 {
		return AuctionStorage{}, false
	}
	tb := Comb(bid[0])
	due := Comb(c[1])
	if len(tb) != 2 || len(due) != 2 {
		return AuctionStorage{}, false
	}
	v, ok := ints(tb[0], tb[1], bid[2], bid[3], due[0], c[3], c[4])
	if !ok {
		return AuctionStorage{}, false
	}
	bidder, ok := AddressOf(bid[1])
	if !ok {
		return AuctionStorage{}, false
	}
	issuer, ok := AddressOf(due[1])
	if !ok {
		return AuctionStorage{}, false
	}
	hash, ok := c[2].Str()
	if !ok {
		return AuctionStorage{}, false
	}
	return AuctionStorage{
		TokenID:           v[0],
		CurrentBid:        v[1],
		CurrentBidder:     bidder,
		CurrentStorePrice: v[2],
		DirectPrice:       v[3],
		DueTime:           v[4],
		Issuer:            issuer,
		IPFSHash:          hash,
		RaisePercentage:   v[5],
		StartPrice:        v[6],
	}, true
}

// DecodeMakeAuctionParams reads make_auction parameters:
// Pair (Pair tokenId (Pair duration directPrice)) (Pair "ipfs" (Pair raise startPrice)).
func DecodeMakeAuctionParams(n Node) (MakeAuctionParams, bool) {
	c := Comb(n)
	if len(c) != 4 {
		return MakeAuctionParams{}, false
	}
	head := Comb(c[0])
	if len(head) != 3 {
		return MakeAuctionParams{}, false
	}
	v, ok := ints(head[0], head[1], head[2], c[2], c[3])
	if !ok {
		return MakeAuctionParams{}, false
	}
	hash, ok := c[1].Str()
	if !ok {
		return MakeAuctionParams{}, false
	}
	return MakeAuctionParams{
		TokenID:         v[0],
		Duration:        v[1],
		DirectPrice:     v[2],
		IPFSHash:        hash,
		RaisePercentage: v[3],
		StartPrice:      v[4],
	}, true
}

// DecodeBundleStorage reads a bundle map value:
// Pair amount { Elt tokenId qty ; ... } ; issuer ; "ipfs" ; price.
func DecodeBundleStorage(n Node) (BundleStorage, bool) {
	c := Comb(n)
	if len(c) != 4 {
		return BundleStorage{}, false
	}
	head := Comb(c[0])
	if len(head) != 2 {
		return BundleStorage{}, false
	}
	v, ok := ints(head[0], c[3])
	if !ok {
		return BundleStorage{}, false
	}
	its, ok := items(head[1])
	if !ok {
		return BundleStorage{}, false
	}
	issuer, ok := AddressOf(c[1])
	if !ok {
		return BundleStorage{}, false
	}
	hash, ok := c[2].Str()
	if !ok {
		return BundleStorage{}, false
	}
	return BundleStorage{Amount: v[0], Items: its, Issuer: issuer, IPFSHash: hash, Price: v[1]}, true
}

// DecodeMakeBundleParams reads make_bundle parameters:
// Pair (Pair amount { Elt tokenId qty ; ... }) (Pair "ipfs" price).
func DecodeMakeBundleParams(n Node) (MakeBundleParams, bool) {
	c := Comb(n)
	if len(c) != 3 {
		return MakeBundleParams{}, false
	}
	head := Comb(c[0])
	if len(head) != 2 {
		return MakeBundleParams{}, false
	}
	v, ok := ints(head[0], c[2])
	if !ok {
		return MakeBundleParams{}, false
	}
	its, ok := items(head[1])
	if !ok {
		return MakeBundleParams{}, false
	}
	hash, ok := c[1].Str()
	if !ok {
		return MakeBundleParams{}, false
	}
	return MakeBundleParams{Amount: v[0], Items: its, IPFSHash: hash, Price: v[1]}, true
}

// DecodeGachaStorage reads a gacha map value:
// Pair (Pair cancelTime amount) (Pair { Elt id (Pair remain total) ; ... } playRemains) ;
// Pair issueTime issuer ; lastPrizeTokenId ; "ipfs" ; price.
func DecodeGachaStorage(n Node) (GachaStorage, bool) {
	c := Comb(n)
	if len(c) != 5 {
		return GachaStorage{}, false
	}
	head := Comb(c[0])
	if len(head) != 3 {
		return GachaStorage{}, false
	}
	ca := Comb(head[0])
	issue := Comb(c[1])
	if len(ca) != 2 || len(issue) != 2 {
		return GachaStorage{}, false
	}
	v, ok := ints(ca[0], ca[1], head[2], issue[0], c[2], c[4])
	if !ok {
		return GachaStorage{}, false
	}
	its, ok := gachaItems(head[1])
	if !ok {
		return GachaStorage{}, false
	}
	issuer, ok := AddressOf(issue[1])
	if !ok {
		return GachaStorage{}, false
	}
	hash, ok := c[3].Str()
	if !ok {
		return GachaStorage{}, false
	}
	return GachaStorage{
		CancelTime:       v[0],
		Amount:           v[1],
		Items:            its,
		PlayRemains:      v[2],
		IssueTime:        v[3],
		Issuer:           issuer,
		LastPrizeTokenID: v[4],
		IPFSHash:         hash,
		Price:            v[5],
	}, true
}

// DecodeMakeGachaParams reads make_gacha parameters in the given layout.
func DecodeMakeGachaParams(n Node, layout GachaLayout) (MakeGachaParams, bool) {
	c := Comb(n)
	if len(c) != 4 {
		return MakeGachaParams{}, false
	}
	head := Comb(c[0])
	var out MakeGachaParams
	switch layout {
	case GachaLayoutBasic:
		if len(head) != 2 {
			return MakeGachaParams{}, false
		}
	case GachaLayoutCancelTime:
		if len(head) != 3 {
			return MakeGachaParams{}, false
		}
		date, ok := head[2].Str()
		if !ok {
			return MakeGachaParams{}, false
		}
		out.CancelDate = date
	default:
		return MakeGachaParams{}, false
	}
	v, ok := ints(head[0], c[1], c[3])
	if !ok {
		return MakeGachaParams{}, false
	}
	its, ok := gachaItems(head[1])
	if !ok {
		return MakeGachaParams{}, false
	}
	hash, ok := c[2].Str()
	if !ok {
		return MakeGachaParams{}, false
	}
	out.Amount, out.LastPrizeTokenID, out.Price = v[0], v[1], v[2]
	out.Items = its
	out.IPFSHash = hash
	return out, true
}

// DecodeGachaPlay reads a play map value: Pair amount (Pair gachaId player).
func DecodeGachaPlay(n Node) (GachaPlay, bool) {
	c := Comb(n)
	if len(c) != 3 {
		return GachaPlay{}, false
	}
	v, ok := ints(c[0], c[1])
	if !ok {
		return GachaPlay{}, false
	}
	player, ok := AddressOf(c[2])
	if !ok {
		return GachaPlay{}, false
	}
	return GachaPlay{Amount: v[0], GachaID: v[1], Player: player}, true
}

// DecodeTokenMetadata reads a token metadata map value:
// Pair tokenId { Elt "" 0x<uri bytes> }.
func DecodeTokenMetadata(n Node) (TokenMetadata, bool) {
	c := Comb(n)
	if len(c) != 2 || c[1].Kind != KindSeq {
		return TokenMetadata{}, false
	}
	id, ok := c[0].Int()
	if !ok {
		return TokenMetadata{}, false
	}
	for _, it := range c[1].Items {
		if !it.IsPrim("Elt", 2) {
			continue
		}
		if k, ok := it.Args[0].Str(); ok && k == "" && it.Args[1].Kind == KindBytes {
			if uri := DecodeURI(it.Args[1].Value); uri != "" {
				return TokenMetadata{TokenID: id, IPFSHash: uri}, true
			}
		}
	}
	return TokenMetadata{}, false
}

// DecodeRoyalty reads a royalty map value:
// Pair { Elt addr share ; ... } (Pair minter totalShare).
func DecodeRoyalty(n Node) (Royalty, bool) {
	c := Comb(n)
	if len(c) != 3 {
		return Royalty{}, false
	}
	sh, ok := shares(c[0])
	if !ok {
		return Royalty{}, false
	}
	minter, ok := AddressOf(c[1])
	if !ok {
		return Royalty{}, false
	}
	total, ok := c[2].Int()
	if !ok {
		return Royalty{}, false
	}
	return Royalty{Shares: sh, Minter: minter, TotalShare: total}, true
}

// DecodeMintParams reads mint parameters:
// Pair (Pair to amount) (Pair tokenId { Elt "" 0x<uri bytes> }).
func DecodeMintParams(n Node) (MintParams, bool) {
	c := Comb(n)
	if len(c) != 3 {
		return MintParams{}, false
	}
	head := Comb(c[0])
	if len(head) != 2 {
		return MintParams{}, false
	}
	to, ok := AddressOf(head[0])
	if !ok {
		return MintParams{}, false
	}
	v, ok := ints(head[1], c[1])
	if !ok {
		return MintParams{}, false
	}
	out := MintParams{To: to, Amount: v[0], TokenID: v[1]}
	if md, ok := DecodeTokenMetadata(Node{Kind: KindPrim, Prim: "Pair", Args: []Node{c[1], c[2]}}); ok {
		out.IPFSHash = md.IPFSHash
	}
	return out, true
}

// DecodeTransferParams reads FA2 transfer parameters:
// { Pair from { Pair to (Pair tokenId amount) ; ... } ; ... }.
// Addresses may be quoted strings or packed bytes.
func DecodeTransferParams(n Node) ([]TransferTx, bool) {
	if n.Kind != KindSeq || len(n.Items) == 0 {
		return nil, false
	}
	var out []TransferTx
	for _, batch := range n.Items {
		c := Comb(batch)
		if len(c) != 2 || c[1].Kind != KindSeq {
			return nil, false
		}
		from, ok := AddressOf(c[0])
		if !ok {
			return nil, false
		}
		for _, tx := range c[1].Items {
			tc := Comb(tx)
			if len(tc) != 3 {
				return nil, false
			}
			to, ok := AddressOf(tc[0])
			if !ok {
				return nil, false
			}
			v, ok := ints(tc[1], tc[2])
			if !ok {
				return nil, false
			}
			out = append(out, TransferTx{From: from, To: to, TokenID: v[0], Amount: v[1]})
		}
	}
	return out, true
}

// DecodeLedgerKey reads an NFT ledger key: Pair owner tokenId.
func DecodeLedgerKey(n Node) (LedgerKey, bool) {
	c := Comb(n)
	if len(c) != 2 {
		return LedgerKey{}, false
	}
	owner, ok := AddressOf(c[0])
	if !ok {
		return LedgerKey{}, false
	}
	id, ok := c[1].Int()
	if !ok {
		return LedgerKey{}, false
	}
	return LedgerKey{Owner: owner, TokenID: id}, true
}

// DecodeDaoLedgerKey reads a governance token ledger key: Pair owner 0.
func DecodeDaoLedgerKey(n Node) (string, bool) {
	k, ok := DecodeLedgerKey(n)
	if !ok || k.TokenID != 0 {
		return "", false
	}
	return k.Owner, true
}

// DecodeIDPair reads the two ints of a Pair a b parameter, as used by
// collect, collect_bundle, play_gacha and bid_ten_percent.
func DecodeIDPair(n Node) (first, second int64, ok bool) {
	c := Comb(n)
	if len(c) != 2 {
		return 0, 0, false
	}
	v, ok := ints(c[0], c[1])
	if !ok {
		return 0, 0, false
	}
	return v[0], v[1], true
}

// DecodeInt reads a bare int parameter such as a listing id.
func DecodeInt(n Node) (int64, bool) { return n.Int() }

// ParseAnd parses src and applies a projection, folding syntax errors into
// the no-match result.
func ParseAnd[T any](src string, decode func(Node) (T, bool)) (T, bool) {
	n, err := Parse(src)
	if err != nil {
		var zero T
		return zero, false
	}
	return decode(n)
}
