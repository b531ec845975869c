package api

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/AIAleph/mvp_market_context/internal/assets"
	"github.com/AIAleph/mvp_market_context/internal/listings"
)

const feedWorkers = 8

// notFound is the body of a detail lookup that matched nothing.
var notFound = map[string]bool{"found": false}

func (s *Server) tokens(r *http.Request) (loader, error) {
	cursor, size := s.pageParams(r)
	return func(ctx context.Context) (any, error) {
		page := Paginate(s.assets.AllIDs(ctx), cursor, size)
		found := make([]*assets.Token, len(page.Items))
		var g errgroup.Group
		g.SetLimit(feedWorkers)
		for i, ref := range page.Items {
			i, ref := i, ref
			g.Go(func() error {
				if t, ok := s.assets.Token(ctx, ref.TokenID, false); ok {
					found[i] = &t
				}
				return nil
			})
		}
		_ = g.Wait()
		out := make([]assets.Token, 0, len(found))
		for _, t := range found {
			if t != nil {
				out = append(out, *t)
			}
		}
		return map[string]any{"tokens": out, "hasMore": page.HasMore}, nil
	}, nil
}

func (s *Server) token(r *http.Request) (loader, error) {
	id, err := idParam(r, "tokenID")
	if err != nil {
		return nil, err
	}
	withBurned := r.URL.Query().Get("burned") == "true"
	return func(ctx context.Context) (any, error) {
		t, ok := s.assets.Token(ctx, id, withBurned)
		if !ok {
			return notFound, nil
		}
		return map[string]any{"token": t}, nil
	}, nil
}

func (s *Server) tokenRecords(r *http.Request) (loader, error) {
	id, err := idParam(r, "tokenID")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (any, error) {
		return map[string]any{"records": s.activity.TokenActivity(ctx, id)}, nil
	}, nil
}

func (s *Server) tokenSales(r *http.Request) (loader, error) {
	id, err := idParam(r, "tokenID")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (any, error) {
		return map[string]any{"sales": s.listings.Sales(ctx, id)}, nil
	}, nil
}

func (s *Server) daoBalances(*http.Request) (loader, error) {
	return func(ctx context.Context) (any, error) {
		return map[string]any{"balances": s.assets.DaoBalances(ctx)}, nil
	}, nil
}

// account wraps a per-address lookup returned under key.
func account[T any](key string, fn func(ctx context.Context, address string) T) endpoint {
	return func(r *http.Request) (loader, error) {
		addr, err := addressParam(r)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) {
			return map[string]any{key: fn(ctx, addr)}, nil
		}, nil
	}
}

func (s *Server) accountDao(r *http.Request) (loader, error) {
	return account("akaDao", s.assets.DaoBalance)(r)
}

func (s *Server) accountCreations(r *http.Request) (loader, error) {
	return account("creations", s.assets.Creations)(r)
}

func (s *Server) accountHoldings(r *http.Request) (loader, error) {
	return account("holdings", s.assets.Holdings)(r)
}

func (s *Server) accountRecords(r *http.Request) (loader, error) {
	return account("records", s.activity.AccountActivity)(r)
}

func (s *Server) accountAuctions(r *http.Request) (loader, error) {
	return account("auctions", func(ctx context.Context, addr string) []listings.Auction {
		return s.listings.Auctions(ctx, addr, 0)
	})(r)
}

func (s *Server) accountBundles(r *http.Request) (loader, error) {
	return account("bundles", func(ctx context.Context, addr string) []listings.Bundle {
		return s.listings.Bundles(ctx, addr, 0)
	})(r)
}

func (s *Server) accountGachas(r *http.Request) (loader, error) {
	return account("gachas", func(ctx context.Context, addr string) []listings.Gacha {
		return s.listings.Gachas(ctx, addr, 0)
	})(r)
}

// feed pages a listing feed filtered by the days query parameter.
func feed[T any](s *Server, key string, list func(ctx context.Context, issuer string, days int) []T) endpoint {
	return func(r *http.Request) (loader, error) {
		cursor, size := s.pageParams(r)
		days := max(queryInt(r, "days", 0), 0)
		return func(ctx context.Context) (any, error) {
			page := Paginate(list(ctx, "", days), cursor, size)
			return map[string]any{key: page.Items, "hasMore": page.HasMore}, nil
		}, nil
	}
}

// detail looks up one listing by the id path parameter.
func detail[T any](key string, get func(ctx context.Context, id int64) (T, bool)) endpoint {
	return func(r *http.Request) (loader, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) {
			v, ok := get(ctx, id)
			if !ok {
				return notFound, nil
			}
			return map[string]any{key: v}, nil
		}, nil
	}
}

func (s *Server) auctions(r *http.Request) (loader, error) {
	return feed(s, "auctions", s.listings.Auctions)(r)
}

func (s *Server) auction(r *http.Request) (loader, error) {
	return detail("auction", s.listings.Auction)(r)
}

func (s *Server) bundles(r *http.Request) (loader, error) {
	return feed(s, "bundles", s.listings.Bundles)(r)
}

func (s *Server) bundle(r *http.Request) (loader, error) {
	return detail("bundle", s.listings.Bundle)(r)
}

func (s *Server) gachas(r *http.Request) (loader, error) {
	return feed(s, "gachas", s.listings.Gachas)(r)
}

func (s *Server) gacha(r *http.Request) (loader, error) {
	return detail("gacha", s.listings.Gacha)(r)
}

func (s *Server) auctionBids(r *http.Request) (loader, error) {
	id, err := idParam(r, "id")
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (any, error) {
		return map[string]any{"bids": s.listings.BidHistory(ctx, id)}, nil
	}, nil
}

func (s *Server) collects(kind listings.Kind) endpoint {
	return func(r *http.Request) (loader, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) {
			return map[string]any{"records": s.listings.CollectOperations(ctx, kind, id)}, nil
		}, nil
	}
}
