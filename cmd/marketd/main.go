package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AIAleph/mvp_market_context/internal/activity"
	"github.com/AIAleph/mvp_market_context/internal/api"
	"github.com/AIAleph/mvp_market_context/internal/assets"
	"github.com/AIAleph/mvp_market_context/internal/cache"
	cfgpkg "github.com/AIAleph/mvp_market_context/internal/config"
	"github.com/AIAleph/mvp_market_context/internal/indexer"
	"github.com/AIAleph/mvp_market_context/internal/ipfs"
	"github.com/AIAleph/mvp_market_context/internal/listings"
	"github.com/AIAleph/mvp_market_context/internal/logging"
	"github.com/AIAleph/mvp_market_context/internal/metadata"
	"github.com/AIAleph/mvp_market_context/internal/michelson"
	"github.com/AIAleph/mvp_market_context/internal/snapshot"
	"github.com/AIAleph/mvp_market_context/internal/telemetry"
	"github.com/AIAleph/mvp_market_context/internal/versions"
)

const shutdownGrace = 10 * time.Second

var (
	// version is set via -ldflags "-X main.version=..."
	version = "dev"
	// exit is aliased to os.Exit to allow overriding in tests.
	exit = os.Exit
	// function variables allow tests to inject stubs
	newApp func(ctx context.Context, cfg cfgpkg.Config) (*app, error)
	listen func(ctx context.Context, addr string, h http.Handler) error
)

// app is the wired read model.
type app struct {
	assets   *assets.Directory
	listings *listings.Resolver
	activity *activity.Reconstructor
	close    func(context.Context) error
}

func defaultNewApp(ctx context.Context, cfg cfgpkg.Config) (*app, error) {
	qr, err := indexer.New(indexer.Options{
		Endpoint:  cfg.IndexerURL,
		Network:   cfg.Network,
		APIKey:    cfg.IndexerAPIKey,
		RateLimit: cfg.RateLimit,
		Retries:   cfg.HTTPRetries,
		Backoff:   cfg.HTTPBackoffBase,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}
	snap, err := snapshot.NewClient(cfg.SnapshotURL, &http.Client{Timeout: cfg.RequestTimeout})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	store, err := metadata.Open(ctx, metadata.Options{
		Backend:     cfg.MetadataBackend,
		MongoURI:    cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	files := ipfs.New(cfg.IPFSGateways, cfg.IPFSTimeout, ipfs.Pinner{
		URL:       cfg.PinataURL,
		APIKey:    cfg.PinataAPIKey,
		APISecret: cfg.PinataSecret,
	}, nil)
	return wire(qr, snap, metadata.NewResolver(store, files, cfg.PinataName), store.Close), nil
}

// wire assembles the read model over its collaborators.
func wire(qr indexer.Querier, snap snapshot.Reader, meta *metadata.Resolver, closer func(context.Context) error) *app {
	dep := versions.Mainnet()
	dir := assets.New(qr, dep, meta)
	lst := listings.New(qr, snap, dep, meta, dir)
	return &app{
		assets:   dir,
		listings: lst,
		activity: activity.New(qr, dep, lst, meta),
		close:    closer,
	}
}

func defaultListen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func wireDefaults() {
	newApp = defaultNewApp
	listen = defaultListen
}

func init() { wireDefaults() }

// printUsage prints a detailed CLI help with env mappings and examples.
func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "\nUsage:\n  %s [--mode serve|token-records|account-records] [flags]\n\n", os.Args[0])
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nEnvironment variables (defaults):")
	fmt.Fprintln(out, "  INDEXER_URL        Indexer base URL (default conseil-prod)")
	fmt.Fprintln(out, "  INDEXER_API_KEY    Indexer API key")
	fmt.Fprintln(out, "  TEZOS_NETWORK      Network name (default mainnet)")
	fmt.Fprintln(out, "  SNAPSHOT_URL       Storage snapshot API (default https://api.tzkt.io)")
	fmt.Fprintln(out, "  METADATA_BACKEND   mongo | postgres | memory (default mongo)")
	fmt.Fprintln(out, "  MONGODB_URI        MongoDB URI (or MONGODB_HOST/USER/PASS)")
	fmt.Fprintln(out, "  POSTGRES_DSN       PostgreSQL DSN for the postgres backend")
	fmt.Fprintln(out, "  IPFS_GATEWAYS      Comma separated gateways tried in order")
	fmt.Fprintln(out, "  PINATA_API_KEY     Pinning credentials (optional)")
	fmt.Fprintln(out, "  RATE_LIMIT         Indexer rate limit (req/s, default 0 = unlimited)")
	fmt.Fprintln(out, "  HTTP_RETRIES       HTTP retries on 5xx/429/network (default 2)")
	fmt.Fprintln(out, "  REQUEST_TIMEOUT    Per request timeout (default 10s)")
	fmt.Fprintln(out, "  CACHE_TTL          Response cache TTL (default 600s)")
	fmt.Fprintln(out, "  CACHE_REFRESH      Response cache refresh interval (default 30s)")
	fmt.Fprintln(out, "  PAGE_SIZE          Default feed page size (default 5, max 30)")
	fmt.Fprintln(out, "  LISTEN_ADDR        HTTP listen address (default :8080)")
	fmt.Fprintln(out, "  LOG_LEVEL          debug | info | warn | error (default info)")
	fmt.Fprintln(out, "  OTEL_ENDPOINT      OTLP/HTTP traces endpoint (optional)")
	fmt.Fprintln(out, "\nExamples:")
	fmt.Fprintln(out, "  Serve the HTTP API:")
	fmt.Fprintln(out, "    marketd --mode serve --listen :8080")
	fmt.Fprintln(out, "  Print the history of a token:")
	fmt.Fprintln(out, "    marketd --mode token-records --token 42")
	fmt.Fprintln(out, "  Print the history of an account:")
	fmt.Fprintln(out, "    marketd --mode account-records --address tz1...")
}

func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	exit(code)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// marketd serves the marketplace read model or prints one history.
func main() {
	defaults, err := cfgpkg.Load()
	if err != nil {
		fail(2, "config error: %v", err)
		return
	}
	var (
		mode        string
		tokenID     int64
		address     string
		listenAddr  string
		timeout     time.Duration
		dryRun      bool
		showVersion bool
	)

	flag.Usage = printUsage
	flag.StringVar(&mode, "mode", "serve", "Mode: serve | token-records | account-records")
	flag.Int64Var(&tokenID, "token", -1, "Token id for --mode token-records")
	flag.StringVar(&address, "address", "", "Account address (tz1/tz2/tz3/KT1) for --mode account-records")
	flag.StringVar(&listenAddr, "listen", defaults.ListenAddr, "HTTP listen address (LISTEN_ADDR)")
	flag.StringVar(&defaults.IndexerURL, "indexer", defaults.IndexerURL, "Indexer base URL (INDEXER_URL)")
	flag.StringVar(&defaults.SnapshotURL, "snapshot", defaults.SnapshotURL, "Storage snapshot API (SNAPSHOT_URL)")
	flag.StringVar(&defaults.MetadataBackend, "metadata-backend", defaults.MetadataBackend, "Metadata backend: mongo | postgres | memory (METADATA_BACKEND)")
	flag.IntVar(&defaults.RateLimit, "rate-limit", defaults.RateLimit, "Indexer rate limit (req/s, 0 = unlimited)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for the record modes")
	flag.BoolVar(&dryRun, "dry-run", false, "Print plan and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	mode = strings.ToLower(mode)
	switch mode {
	case "serve":
	case "token-records":
		if tokenID < 0 {
			fail(2, "missing --token; see --help")
			return
		}
	case "account-records":
		if address == "" {
			fail(2, "missing --address; see --help")
			return
		}
		if _, err := michelson.WriteAddress(address); err != nil {
			fail(2, "invalid --address %q", address)
			return
		}
	default:
		fail(2, "unknown --mode %q (use serve|token-records|account-records)", mode)
		return
	}
	if timeout <= 0 {
		fail(2, "--timeout must be > 0")
		return
	}

	if dryRun {
		// Avoid logging secrets; DSNs are redacted.
		plan := map[string]any{
			"mode":             mode,
			"listen":           listenAddr,
			"indexer":          defaults.IndexerURL,
			"network":          defaults.Network,
			"snapshot":         defaults.SnapshotURL,
			"metadata_backend": defaults.MetadataBackend,
			"mongo_uri":        cfgpkg.RedactDSN(defaults.MongoURI),
			"postgres_dsn":     cfgpkg.RedactDSN(defaults.PostgresDSN),
			"rate_limit":       defaults.RateLimit,
			"request_timeout":  defaults.RequestTimeout.String(),
			"cache_ttl":        defaults.CacheTTL.String(),
			"page_size":        defaults.PageSize,
			"otel_endpoint":    defaults.OTelEndpoint,
		}
		if mode == "token-records" {
			plan["token"] = tokenID
		}
		if mode == "account-records" {
			plan["address"] = address
		}
		printJSON(plan)
		return
	}

	logging.Configure(os.Stderr, defaults.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, defaults.OTelEndpoint)
	if err != nil {
		logging.Logger().Warn("telemetry_setup_failed", "component", "marketd", "error", err.Error())
	}
	defer func() { _ = shutdown(context.Background()) }()

	a, err := newApp(ctx, defaults)
	if err != nil {
		fail(1, "startup error: %v", err)
		return
	}
	defer func() { _ = a.close(context.Background()) }()

	switch mode {
	case "serve":
		c := cache.New(defaults.CacheEntries, defaults.CacheTTL, defaults.CacheRefresh)
		go c.Run(ctx)
		srv := api.New(a.assets, a.listings, a.activity, api.Options{
			Cache:          c,
			PageSize:       defaults.PageSize,
			RequestTimeout: defaults.RequestTimeout,
		})
		logging.Logger().Info("listening", "component", "marketd", "addr", listenAddr, "version", version)
		if err := listen(ctx, listenAddr, srv.Routes()); err != nil {
			fail(1, "serve error: %v", err)
			return
		}
	case "token-records":
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		printJSON(map[string]any{"records": a.activity.TokenActivity(rctx, tokenID)})
	case "account-records":
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		printJSON(map[string]any{"records": a.activity.AccountActivity(rctx, address)})
	}
}
