// Package assets answers token level questions from the NFT ledger, royalty
// and metadata big maps: who owns a token, who minted it and what it points
// to on IPFS.
package assets

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/logging"
	"github.com/AIAleph/mvp_market_context/internal/metadata"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

// scanLimit bounds full big map scans.
const scanLimit = 100000

// Ownership is the current distribution of one token.
type Ownership struct {
	Owners      map[string]int64  `json:"owners"`
	Aliases     map[string]string `json:"aliases"`
	TotalAmount int64             `json:"totalAmount"`
}

// Royalties lists creators with the minter first.
type Royalties struct {
	Creators []string `json:"creators"`
	Shares   []int64  `json:"shares"`
}

type TokenRef struct {
	TokenID int64  `json:"tokenId"`
	Minter  string `json:"minter"`
}

// Creation is a token minted by an account.
type Creation struct {
	TokenID  int64  `json:"tokenId"`
	IPFSHash string `json:"ipfsHash"`
}

// Holding is a non-zero ledger balance of an account.
type Holding struct {
	TokenID  int64  `json:"tokenId"`
	Amount   int64  `json:"amount"`
	IPFSHash string `json:"ipfsHash"`
}

type DaoBalance struct {
	Address string `json:"address"`
	Balance int64  `json:"akaDao"`
}

// Token is the detail view of one token.
type Token struct {
	Ownership

	TokenID   int64              `json:"tokenId"`
	IPFSHash  string             `json:"ipfsHash"`
	Royalties Royalties          `json:"royalties"`
	Info      metadata.TokenInfo `json:"tokenInfo"`

	// CreatorAliases follows Info.Creators.
	CreatorAliases []string `json:"creatorAliases"`
}

// Directory reads token state from the indexer. Upstream failures are
// logged and read as empty results.
type Directory struct {
	qr   indexer.Querier
	dep  versions.Deployment
	meta *metadata.Resolver
}

// New wires a directory. meta may be nil, in which case aliases and token
// info stay empty.
func New(qr indexer.Querier, dep versions.Deployment, meta *metadata.Resolver) *Directory {
	return &Directory{qr: qr, dep: dep, meta: meta}
}

func (d *Directory) entries(ctx context.Context, event string, q indexer.Query) []indexer.BigMapEntry {
	es, err := indexer.Entries(ctx, d.qr, q)
	if err != nil {
		logging.Logger().Warn(event, "component", "assets.directory", "error", err.Error())
		return nil
	}
	return es
}

func (d *Directory) alias(ctx context.Context, address string) string {
	if d.meta == nil {
		return ""
	}
	return d.meta.Alias(ctx, address)
}

func balance(e indexer.BigMapEntry) int64 {
	v, ok := michelson.ParseAnd(e.Value, michelson.DecodeInt)
	if !ok {
		return 0
	}
	return v
}

// Owners aggregates the ledger balances of tokenID. Unless withBurned is
// set the burn address is dropped from the result, and a token whose whole
// supply sits there is reported as not found.
func (d *Directory) Owners(ctx context.Context, tokenID int64, withBurned bool) (Ownership, bool) {
	q := indexer.BigMap(d.dep.LedgerMap).
		Where(indexer.FieldKey, indexer.EndsWith, fmt.Sprintf(" %d", tokenID)).
		Not(indexer.FieldValue, indexer.Eq, 0).
		WithLimit(scanLimit)
	out := Ownership{Owners: map[string]int64{}, Aliases: map[string]string{}}
	for _, e := range d.entries(ctx, "owners_query_failed", q) {
		k, ok := michelson.ParseAnd(e.Key, michelson.DecodeLedgerKey)
		if !ok || k.TokenID != tokenID {
			continue
		}
		out.Owners[k.Owner] = balance(e)
	}
	if len(out.Owners) == 0 {
		return Ownership{}, false
	}
	for _, v := range out.Owners {
		if v > 0 {
			out.TotalAmount += v
		}
	}
	if !withBurned {
		burned, has := out.Owners[michelson.BurnAddress]
		if has && burned == out.TotalAmount {
			return Ownership{}, false
		}
		if burned > 0 {
			out.TotalAmount -= burned
		}
		delete(out.Owners, michelson.BurnAddress)
	}
	for addr := range out.Owners {
		out.Aliases[addr] = d.alias(ctx, addr)
	}
	return out, true
}

// Royalties returns the creators of tokenID. The minter always comes first
// with share 0 when it is not listed in the royalty map.
func (d *Directory) Royalties(ctx context.Context, tokenID int64) (Royalties, bool) {
	q := indexer.BigMap(d.dep.RoyaltyMap).Where(indexer.FieldKey, indexer.Eq, tokenID).WithLimit(1)
	es := d.entries(ctx, "royalties_query_failed", q)
	if len(es) == 0 {
		return Royalties{}, false
	}
	r, ok := michelson.ParseAnd(es[0].Value, michelson.DecodeRoyalty)
	if !ok {
		return Royalties{}, false
	}
	return royaltiesOf(r), true
}

func royaltiesOf(r michelson.Royalty) Royalties {
	out := Royalties{Creators: []string{r.Minter}, Shares: []int64{0}}
	for _, s := range r.Shares {
		if s.Address == r.Minter {
			out.Shares[0] = s.Share
			continue
		}
		out.Creators = append(out.Creators, s.Address)
		out.Shares = append(out.Shares, s.Share)
	}
	return out
}

// AllIDs lists every minted token with its minter, newest first.
func (d *Directory) AllIDs(ctx context.Context) []TokenRef {
	q := indexer.BigMap(d.dep.RoyaltyMap).WithLimit(scanLimit)
	var out []TokenRef
	for _, e := range d.entries(ctx, "all_ids_query_failed", q) {
		id, err := strconv.ParseInt(e.Key, 10, 64)
		if err != nil {
			continue
		}
		r, ok := michelson.ParseAnd(e.Value, michelson.DecodeRoyalty)
		if !ok {
			continue
		}
		out = append(out, TokenRef{TokenID: id, Minter: r.Minter})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TokenID > out[j].TokenID })
	return out
}

// IPFSHash returns the metadata CID recorded for tokenID.
func (d *Directory) IPFSHash(ctx context.Context, tokenID int64) (string, bool) {
	q := indexer.BigMap(d.dep.MetadataMap).
		Where(indexer.FieldKey, indexer.Eq, tokenID).
		Order(indexer.FieldBlockLevel, indexer.Desc).
		WithLimit(1)
	es := d.entries(ctx, "ipfs_hash_query_failed", q)
	if len(es) == 0 {
		return "", false
	}
	md, ok := michelson.ParseAnd(es[0].Value, michelson.DecodeTokenMetadata)
	if !ok {
		return "", false
	}
	return md.IPFSHash, true
}

// hashes reads the metadata CIDs of several tokens in one query.
func (d *Directory) hashes(ctx context.Context, ids []int64) map[int64]string {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out
	}
	set := make([]any, len(ids))
	for i, id := range ids {
		set[i] = id
	}
	q := indexer.BigMap(d.dep.MetadataMap).Where(indexer.FieldKey, indexer.In, set...).WithLimit(len(ids))
	for _, e := range d.entries(ctx, "ipfs_hashes_query_failed", q) {
		if md, ok := michelson.ParseAnd(e.Value, michelson.DecodeTokenMetadata); ok {
			out[md.TokenID] = md.IPFSHash
		}
	}
	return out
}

// Creations lists tokens minted by address, newest first. An invalid
// address yields nil.
func (d *Directory) Creations(ctx context.Context, address string) []Creation {
	packed, err := michelson.WriteAddress(address)
	if err != nil {
		return nil
	}
	q := indexer.BigMap(d.dep.RoyaltyMap).
		Where(indexer.FieldValue, indexer.Like, "(Pair 0x"+packed+" ").
		Order(indexer.FieldBlockLevel, indexer.Desc).
		WithLimit(scanLimit)
	var ids []int64
	for _, e := range d.entries(ctx, "creations_query_failed", q) {
		if id, err := strconv.ParseInt(e.Key, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	hs := d.hashes(ctx, ids)
	out := make([]Creation, 0, len(hs))
	for id, h := range hs {
		out = append(out, Creation{TokenID: id, IPFSHash: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID > out[j].TokenID })
	return out
}

// Holdings lists the non-zero balances of address, highest token id first.
func (d *Directory) Holdings(ctx context.Context, address string) []Holding {
	packed, err := michelson.WriteAddress(address)
	if err != nil {
		return nil
	}
	q := indexer.BigMap(d.dep.LedgerMap).
		Where(indexer.FieldKey, indexer.StartsWith, "Pair 0x"+packed).
		Not(indexer.FieldValue, indexer.Eq, 0).
		WithLimit(scanLimit)
	var out []Holding
	var ids []int64
	for _, e := range d.entries(ctx, "holdings_query_failed", q) {
		k, ok := michelson.ParseAnd(e.Key, michelson.DecodeLedgerKey)
		if !ok || k.Owner != address {
			continue
		}
		out = append(out, Holding{TokenID: k.TokenID, Amount: balance(e)})
		ids = append(ids, k.TokenID)
	}
	hs := d.hashes(ctx, ids)
	for i := range out {
		out[i].IPFSHash = hs[out[i].TokenID]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TokenID > out[j].TokenID })
	return out
}

// DaoBalance is the governance token balance of address, 0 when unknown.
func (d *Directory) DaoBalance(ctx context.Context, address string) int64 {
	packed, err := michelson.WriteAddress(address)
	if err != nil {
		return 0
	}
	q := indexer.BigMap(d.dep.DaoLedger).
		Where(indexer.FieldKey, indexer.Eq, "Pair 0x"+packed+" 0").
		Not(indexer.FieldValue, indexer.Eq, 0).
		WithLimit(1)
	es := d.entries(ctx, "dao_balance_query_failed", q)
	if len(es) == 0 {
		return 0
	}
	return balance(es[0])
}

// DaoBalances lists every non-zero governance token balance.
func (d *Directory) DaoBalances(ctx context.Context) []DaoBalance {
	q := indexer.BigMap(d.dep.DaoLedger).Not(indexer.FieldValue, indexer.Eq, 0).WithLimit(scanLimit)
	var out []DaoBalance
	for _, e := range d.entries(ctx, "dao_balances_query_failed", q) {
		owner, ok := michelson.ParseAnd(e.Key, michelson.DecodeDaoLedgerKey)
		if !ok {
			continue
		}
		out = append(out, DaoBalance{Address: owner, Balance: balance(e)})
	}
	return out
}

// Token assembles the detail view. It is not found when the token has no
// metadata entry or no visible owners.
func (d *Directory) Token(ctx context.Context, tokenID int64, withBurned bool) (Token, bool) {
	hash, ok := d.IPFSHash(ctx, tokenID)
	if !ok || hash == "" {
		return Token{}, false
	}
	t := Token{TokenID: tokenID, IPFSHash: hash}
	var found bool
	var g errgroup.Group
	g.Go(func() error {
		t.Ownership, found = d.Owners(ctx, tokenID, withBurned)
		return nil
	})
	g.Go(func() error {
		t.Royalties, _ = d.Royalties(ctx, tokenID)
		return nil
	})
	g.Go(func() error {
		if d.meta != nil {
			t.Info = d.meta.TokenInfo(ctx, tokenID, hash)
		}
		return nil
	})
	_ = g.Wait()
	if !found {
		return Token{}, false
	}
	if len(t.Royalties.Creators) > 0 {
		t.Info.Creators = t.Royalties.Creators
	}
	if d.meta != nil {
		t.CreatorAliases = d.meta.Aliases(ctx, t.Info.Creators)
	}
	return t, true
}
