// Package api serves the marketplace read model over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/AIAleph/mvp_market_context/internal/activity"
	"github.com/AIAleph/mvp_market_context/internal/assets"
	"github.com/AIAleph/mvp_market_context/internal/cache"
	"github.com/AIAleph/mvp_market_context/internal/listings"
	"github.com/AIAleph/mvp_market_context/internal/logging"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
)

const (
	defaultPageSize = 5
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-Id"
)

// Assets is the token side of the read model.
type Assets interface {
	Token(ctx context.Context, tokenID int64, withBurned bool) (assets.Token, bool)
	AllIDs(ctx context.Context) []assets.TokenRef
	Creations(ctx context.Context, address string) []assets.Creation
	Holdings(ctx context.Context, address string) []assets.Holding
	DaoBalance(ctx context.Context, address string) int64
	DaoBalances(ctx context.Context) []assets.DaoBalance
}

// Listings is the marketplace side of the read model.
type Listings interface {
	Sales(ctx context.Context, tokenID int64) listings.Sales
	Auction(ctx context.Context, id int64) (listings.Auction, bool)
	Auctions(ctx context.Context, issuer string, days int) []listings.Auction
	BidHistory(ctx context.Context, id int64) []listings.Bid
	Bundle(ctx context.Context, id int64) (listings.Bundle, bool)
	Bundles(ctx context.Context, issuer string, days int) []listings.Bundle
	Gacha(ctx context.Context, id int64) (listings.Gacha, bool)
	Gachas(ctx context.Context, issuer string, days int) []listings.Gacha
	CollectOperations(ctx context.Context, kind listings.Kind, id int64) []listings.CollectOp
}

// Activity rebuilds token and account histories.
type Activity interface {
	TokenActivity(ctx context.Context, tokenID int64) []activity.Record
	AccountActivity(ctx context.Context, address string) []activity.Record
}

// Options tune a Server. A nil Cache disables response caching.
type Options struct {
	Cache          *cache.Cache
	PageSize       int
	RequestTimeout time.Duration
}

// Server routes requests to the read model.
type Server struct {
	assets   Assets
	listings Listings
	activity Activity
	cache    *cache.Cache
	pageSize int
	timeout  time.Duration
}

// New builds a Server.
func New(a Assets, l Listings, act Activity, o Options) *Server {
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	return &Server{assets: a, listings: l, activity: act, cache: o.Cache, pageSize: o.PageSize, timeout: o.RequestTimeout}
}

// errBadRequest marks request parsing failures.
var errBadRequest = errors.New("bad request")

// loader computes a response body for an already parsed request.
type loader = cache.Loader

// endpoint parses a request into the loader of its body.
type endpoint func(r *http.Request) (loader, error)

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tokens", func(r chi.Router) {
		r.Get("/", s.serve(s.tokens))
		r.Get("/{tokenID}", s.serve(s.token))
		r.Get("/{tokenID}/records", s.serve(s.tokenRecords))
		r.Get("/{tokenID}/sales", s.serve(s.tokenSales))
	})

	r.Get("/akadao", s.serve(s.daoBalances))
	r.Route("/accounts/{address}", func(r chi.Router) {
		r.Get("/akadao", s.serve(s.accountDao))
		r.Get("/creations", s.serve(s.accountCreations))
		r.Get("/holdings", s.serve(s.accountHoldings))
		r.Get("/auctions", s.serve(s.accountAuctions))
		r.Get("/bundles", s.serve(s.accountBundles))
		r.Get("/gachas", s.serve(s.accountGachas))
		r.Get("/records", s.serve(s.accountRecords))
	})

	r.Route("/auctions", func(r chi.Router) {
		r.Get("/", s.serve(s.auctions))
		r.Get("/{id}", s.serve(s.auction))
		r.Get("/{id}/bids", s.serve(s.auctionBids))
		r.Get("/{id}/collects", s.serve(s.collects(listings.KindAuction)))
	})
	r.Route("/bundles", func(r chi.Router) {
		r.Get("/", s.serve(s.bundles))
		r.Get("/{id}", s.serve(s.bundle))
		r.Get("/{id}/collects", s.serve(s.collects(listings.KindBundle)))
	})
	r.Route("/gachas", func(r chi.Router) {
		r.Get("/", s.serve(s.gachas))
		r.Get("/{id}", s.serve(s.gacha))
		r.Get("/{id}/plays", s.serve(s.collects(listings.KindGacha)))
	})
	r.Get("/swaps/{id}/collects", s.serve(s.collects(listings.KindSwap)))
	return r
}

// serve runs an endpoint through the response cache keyed by path and query.
func (s *Server) serve(ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		load, err := ep(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		ctx := r.Context()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		var body any
		if s.cache != nil {
			body, err = s.cache.GetOrLoad(ctx, cache.Key(r.URL.Path, r.URL.Query().Encode()), load)
		} else {
			body, err = load(ctx)
		}
		if err != nil {
			logging.Logger().Warn("request_failed", "component", "api", "path", r.URL.Path, "request_id", w.Header().Get(RequestIDHeader), "error", err.Error())
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Logger().Info("http_request",
			"component", "api",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", w.Header().Get(RequestIDHeader),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func idParam(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %s %q", errBadRequest, name, v)
	}
	return id, nil
}

func addressParam(r *http.Request) (string, error) {
	addr := chi.URLParam(r, "address")
	if _, err := michelson.WriteAddress(addr); err != nil {
		return "", fmt.Errorf("%w: address %q", errBadRequest, addr)
	}
	return addr, nil
}
