package metadata

import (
	"context"
	"strings"

	"github.com/AIAleph/mvp_market_context/internal/logging"
)

// ContentFetcher reads and pins content-addressed JSON.
type ContentFetcher interface {
	GetJSON(ctx context.Context, hash string, out any) error
	Pin(hash, name string)
}

// PackKind selects the metadata collection of a listing.
type PackKind string

const (
	PackAuction PackKind = "auction"
	PackBundle  PackKind = "bundle"
	PackGacha   PackKind = "gacha"
)

func (k PackKind) collection() string {
	switch k {
	case PackAuction:
		return AuctionCollection
	case PackBundle:
		return BundleCollection
	}
	return GachaCollection
}

// PackMetadata describes an auction, bundle or gacha.
type PackMetadata struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Symbol             string   `json:"symbol"`
	Creators           []string `json:"creators"`
	Decimals           int      `json:"decimals"`
	IsBooleanAmount    bool     `json:"isBooleanAmount"`
	ShouldPreferSymbol bool     `json:"shouldPreferSymbol"`
}

func (p PackMetadata) document() Document {
	return Document{
		"title":              p.Title,
		"description":        p.Description,
		"symbol":             p.Symbol,
		"creators":           p.Creators,
		"decimals":           p.Decimals,
		"isBooleanAmount":    p.IsBooleanAmount,
		"shouldPreferSymbol": p.ShouldPreferSymbol,
	}
}

func packFromDocument(d Document) PackMetadata {
	p := PackMetadata{
		Title:       d.String("title"),
		Description: d.String("description"),
		Symbol:      d.String("symbol"),
		Creators:    d.Strings("creators"),
		Decimals:    int(d.Int("decimals")),
	}
	p.IsBooleanAmount, _ = d["isBooleanAmount"].(bool)
	p.ShouldPreferSymbol, _ = d["shouldPreferSymbol"].(bool)
	return p
}

// TokenInfo is the off-chain description of a token.
type TokenInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Symbol       string   `json:"symbol"`
	ArtifactURI  string   `json:"artifactUri"`
	DisplayURI   string   `json:"displayUri"`
	ThumbnailURI string   `json:"thumbnailUri"`
	Creators     []string `json:"creators"`
}

func (t TokenInfo) document() Document {
	return Document{
		"name":         t.Name,
		"description":  t.Description,
		"tags":         t.Tags,
		"symbol":       t.Symbol,
		"artifactUri":  t.ArtifactURI,
		"displayUri":   t.DisplayURI,
		"thumbnailUri": t.ThumbnailURI,
		"creators":     t.Creators,
	}
}

func tokenFromDocument(d Document) TokenInfo {
	return TokenInfo{
		Name:         d.String("name"),
		Description:  d.String("description"),
		Tags:         d.Strings("tags"),
		Symbol:       d.String("symbol"),
		ArtifactURI:  d.String("artifactUri"),
		DisplayURI:   d.String("displayUri"),
		ThumbnailURI: d.String("thumbnailUri"),
		Creators:     d.Strings("creators"),
	}
}

// Resolver derives aliases, token info and pack metadata from the store,
// falling back to IPFS and writing resolved documents back.
type Resolver struct {
	store   Store
	content ContentFetcher
	pinName string
}

// NewResolver wires a store with an optional content fetcher.
func NewResolver(store Store, content ContentFetcher, pinName string) *Resolver {
	return &Resolver{store: store, content: content, pinName: pinName}
}

// Alias returns the display alias of an address, or "".
func (r *Resolver) Alias(ctx context.Context, address string) string {
	if address == "" {
		return ""
	}
	d, ok, err := r.store.Find(ctx, AccountCollection, Filter{"address": address})
	if err != nil {
		logging.Logger().Warn("alias_lookup_failed", "component", "metadata.resolver", "address", address, "error", err.Error())
		return ""
	}
	if !ok {
		return ""
	}
	return d.String("alias")
}

// Aliases resolves each address in order.
func (r *Resolver) Aliases(ctx context.Context, addresses []string) []string {
	out := make([]string, len(addresses))
	for i, a := range addresses {
		out[i] = r.Alias(ctx, a)
	}
	return out
}

// StoredToken returns the stored token document without any fallback.
func (r *Resolver) StoredToken(ctx context.Context, tokenID int64) (TokenInfo, bool) {
	d, ok, err := r.store.Find(ctx, TokenCollection, Filter{"tokenId": tokenID})
	if err != nil {
		logging.Logger().Warn("token_lookup_failed", "component", "metadata.resolver", "token_id", tokenID, "error", err.Error())
		return TokenInfo{}, false
	}
	if !ok {
		return TokenInfo{}, false
	}
	return tokenFromDocument(d), true
}

// TokenName is the stored token name, or "".
func (r *Resolver) TokenName(ctx context.Context, tokenID int64) string {
	t, _ := r.StoredToken(ctx, tokenID)
	return t.Name
}

// TokenInfo returns stored token info when complete, otherwise it reads the
// metadata file under ipfsHash, pins it and stores the result.
func (r *Resolver) TokenInfo(ctx context.Context, tokenID int64, ipfsHash string) TokenInfo {
	if t, ok := r.StoredToken(ctx, tokenID); ok && t.Name != "" && len(t.Creators) > 0 {
		return t
	}
	empty := TokenInfo{Symbol: "akaOBJ"}
	if r.content == nil || ipfsHash == "" {
		return empty
	}
	var t TokenInfo
	if err := r.content.GetJSON(ctx, ipfsHash, &t); err != nil {
		return empty
	}
	if t.ArtifactURI != "" || len(t.Creators) > 0 {
		r.content.Pin(ipfsHash, r.pinName)
		for _, uri := range []string{t.ArtifactURI, t.DisplayURI, t.ThumbnailURI} {
			if _, hash, ok := strings.Cut(uri, "//"); ok && hash != "" {
				r.content.Pin(hash, r.pinName)
			}
		}
		r.save(ctx, TokenCollection, Filter{"tokenId": tokenID}, t.document())
	}
	return t
}

// PackMetadata resolves the metadata of a listing. Hashes that are not
// CIDv0 are literal titles.
func (r *Resolver) PackMetadata(ctx context.Context, kind PackKind, id int64, ipfsHash, issuer, defaultSymbol string) PackMetadata {
	fallback := PackMetadata{Symbol: defaultSymbol, Creators: []string{issuer}}
	if !strings.HasPrefix(ipfsHash, "Qm") {
		fallback.Title = ipfsHash
		fallback.Description = ipfsHash
		return fallback
	}
	coll := kind.collection()
	d, ok, err := r.store.Find(ctx, coll, Filter{"id": id})
	if err != nil {
		logging.Logger().Warn("pack_lookup_failed", "component", "metadata.resolver", "kind", string(kind), "id", id, "error", err.Error())
	}
	if ok && d.String("title") != "" {
		return packFromDocument(d)
	}
	if r.content == nil {
		return fallback
	}
	var p PackMetadata
	if err := r.content.GetJSON(ctx, ipfsHash, &p); err != nil {
		return fallback
	}
	if p.Title != "" {
		r.content.Pin(ipfsHash, r.pinName)
		r.save(ctx, coll, Filter{"id": id}, p.document())
	}
	return p
}

// PackTitle is the title of PackMetadata.
func (r *Resolver) PackTitle(ctx context.Context, kind PackKind, id int64, ipfsHash, issuer string) string {
	return r.PackMetadata(ctx, kind, id, ipfsHash, issuer, "").Title
}

func (r *Resolver) save(ctx context.Context, collection string, filter Filter, doc Document) {
	if err := r.store.Upsert(ctx, collection, filter, doc); err != nil {
		logging.Logger().Warn("metadata_update_failed", "component", "metadata.resolver", "collection", collection, "error", err.Error())
	}
}
