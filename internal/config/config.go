package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	maxRateLimit      = 200
	minRateLimit      = 0
	minHTTPRetries    = 0
	maxHTTPRetries    = 10
	minRequestTimeout = 100 * time.Millisecond
	maxRequestTimeout = 2 * time.Minute
	minCacheTTL       = time.Second
	maxCacheTTL       = 24 * time.Hour
	minCacheRefresh   = time.Second
	maxCacheRefresh   = time.Hour
	minCacheEntries   = 16
	maxCacheEntries   = 1 << 20
	minPageSize       = 1
	maxPageSize       = 30
)

// Config holds 12-factor environment configuration used across binaries.
type Config struct {
	IndexerURL      string        `env:"INDEXER_URL" envDefault:"https://conseil-prod.cryptonomic-infra.tech"`
	IndexerAPIKey   string        `env:"INDEXER_API_KEY"`
	Network         string        `env:"TEZOS_NETWORK" envDefault:"mainnet"`
	SnapshotURL     string        `env:"SNAPSHOT_URL" envDefault:"https://api.tzkt.io"`
	MetadataBackend string        `env:"METADATA_BACKEND" envDefault:"mongo"`
	MongoURI        string        `env:"-"`
	MongoDatabase   string        `env:"MONGODB_DATABASE" envDefault:"akaSwap-DB"`
	PostgresDSN     string        `env:"POSTGRES_DSN"`
	IPFSGateways    []string      `env:"IPFS_GATEWAYS" envSeparator:"," envDefault:"http://127.0.0.1:8080/ipfs/,https://infura-ipfs.io/ipfs/,https://dweb.link/ipfs/,https://cloudflare-ipfs.com/ipfs/"`
	IPFSTimeout     time.Duration `env:"IPFS_TIMEOUT" envDefault:"1s"`
	PinataURL       string        `env:"PINATA_URL" envDefault:"https://api.pinata.cloud/pinning/pinByHash"`
	PinataAPIKey    string        `env:"PINATA_API_KEY"`
	PinataSecret    string        `env:"PINATA_SECRET_API_KEY"`
	PinataName      string        `env:"PINATA_METADATA_NAME" envDefault:"akaSwap"`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"0"`
	HTTPRetries     int           `env:"HTTP_RETRIES" envDefault:"2"`
	HTTPBackoffBase time.Duration `env:"HTTP_BACKOFF_BASE" envDefault:"100ms"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"600s"`
	CacheRefresh    time.Duration `env:"CACHE_REFRESH" envDefault:"30s"`
	CacheEntries    int           `env:"CACHE_ENTRIES" envDefault:"4096"`
	PageSize        int           `env:"PAGE_SIZE" envDefault:"5"`
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// BuildMongoURI prefers MONGODB_URI; otherwise it assembles a URI from
// MONGODB_HOST, MONGODB_USER and MONGODB_PASS. Returns "" without a host.
func BuildMongoURI() string {
	if uri := getenv("MONGODB_URI", ""); uri != "" {
		return uri
	}
	host := strings.TrimSpace(getenv("MONGODB_HOST", ""))
	if host == "" {
		return ""
	}
	u := url.URL{Scheme: "mongodb", Host: host}
	if user := getenv("MONGODB_USER", ""); user != "" {
		if pass := getenv("MONGODB_PASS", ""); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// RedactDSN hides credentials in DSN-like URLs to avoid logging secrets.
func RedactDSN(s string) string {
	if s == "" {
		return s
	}
	if u, err := url.Parse(s); err == nil && u.User != nil {
		if name := u.User.Username(); name != "" {
			u.User = url.UserPassword(name, "***")
		} else {
			u.User = url.User("***")
		}
		return u.String()
	}
	// key=value DSNs (postgres) and unparsable URLs
	if i := strings.Index(s, "password="); i >= 0 {
		end := strings.IndexByte(s[i:], ' ')
		if end < 0 {
			return s[:i] + "password=***"
		}
		return s[:i] + "password=***" + s[i+end:]
	}
	if i := strings.Index(s, "//"); i >= 0 {
		j := strings.Index(s[i+2:], "@")
		if j > 0 {
			creds := s[i+2 : i+2+j]
			if user, _, ok := strings.Cut(creds, ":"); ok {
				return s[:i+2] + user + ":***@" + s[i+2+j+1:]
			}
		}
	}
	return s
}

// Load parses the environment and clamps values to safe ranges.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.MongoURI = BuildMongoURI()
	cfg.MetadataBackend = strings.ToLower(strings.TrimSpace(cfg.MetadataBackend))
	cfg.RateLimit = clampInt(cfg.RateLimit, minRateLimit, maxRateLimit)
	cfg.HTTPRetries = clampInt(cfg.HTTPRetries, minHTTPRetries, maxHTTPRetries)
	cfg.RequestTimeout = clampDuration(cfg.RequestTimeout, minRequestTimeout, maxRequestTimeout)
	cfg.IPFSTimeout = clampDuration(cfg.IPFSTimeout, minRequestTimeout, maxRequestTimeout)
	cfg.CacheTTL = clampDuration(cfg.CacheTTL, minCacheTTL, maxCacheTTL)
	cfg.CacheRefresh = clampDuration(cfg.CacheRefresh, minCacheRefresh, maxCacheRefresh)
	cfg.CacheEntries = clampInt(cfg.CacheEntries, minCacheEntries, maxCacheEntries)
	cfg.PageSize = clampInt(cfg.PageSize, minPageSize, maxPageSize)
	if cfg.HTTPBackoffBase < 0 {
		cfg.HTTPBackoffBase = 0
	}
	return cfg, nil
}

// MaxPageSize is the upper bound for a requested page.
func MaxPageSize() int { return maxPageSize }
