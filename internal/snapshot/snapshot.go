// Package snapshot reads contract storage and big map values as of a block
// level from a TzKT-style REST API.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AIAleph/mvp_market_context/internal/cache"
	"github.com/AIAleph/mvp_market_context/internal/logging"
)

var (
	ErrNotFound      = errors.New("snapshot: not found")
	ErrEmptyEndpoint = errors.New("snapshot: empty endpoint")
)

// Document is a decoded JSON object. Numbers keep their text form.
type Document map[string]any

// Int reads a numeric field; TzKT renders nat values as strings.
func (d Document) Int(field string) (int64, bool) {
	switch v := d[field].(type) {
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func (d Document) String(field string) (string, bool) {
	s, ok := d[field].(string)
	return s, ok
}

// Reader is the storage snapshot collaborator.
type Reader interface {
	// ContractStorage returns storage at level; level <= 0 means latest.
	ContractStorage(ctx context.Context, address string, level int64) (Document, error)
	// BigMapValue returns the last value stored under key.
	BigMapValue(ctx context.Context, mapID int64, key string) (Document, error)
}

// Client implements Reader. Storage at a fixed level never changes and is
// cached.
type Client struct {
	endpoint string
	rc       *resty.Client
	cache    *cache.Cache
}

const (
	levelCacheEntries = 2048
	levelCacheTTL     = time.Hour
)

func NewClient(endpoint string, hc *http.Client) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	rc := resty.NewWithClient(hc).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	return &Client{
		endpoint: endpoint,
		rc:       rc,
		cache:    cache.New(levelCacheEntries, levelCacheTTL, levelCacheTTL),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (raw []byte, err error) {
	start := time.Now()
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			logging.Logger().Warn("snapshot_get_failed",
				"component", "snapshot.client",
				"path", path,
				"elapsed_ms", time.Since(start).Milliseconds(),
				"error", err.Error())
		}
	}()
	resp, err := c.rc.R().SetContext(ctx).SetQueryParamsFromValues(query).Get(c.endpoint + path)
	if err != nil {
		return nil, err
	}
	switch sc := resp.StatusCode(); {
	case sc == http.StatusNoContent || sc == http.StatusNotFound:
		return nil, ErrNotFound
	case sc/100 != 2:
		return nil, fmt.Errorf("snapshot %s http %d", path, sc)
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, ErrNotFound
	}
	return body, nil
}

func decode(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return d, nil
}

func (c *Client) ContractStorage(ctx context.Context, address string, level int64) (Document, error) {
	path := "/v1/contracts/" + url.PathEscape(address) + "/storage"
	q := url.Values{}
	if level > 0 {
		q.Set("level", strconv.FormatInt(level, 10))
	}
	fetch := func(ctx context.Context) (Document, error) {
		raw, err := c.get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		return decode(raw)
	}
	if level <= 0 {
		return fetch(ctx)
	}
	return cache.Load(ctx, c.cache, cache.Key("storage", address, level), fetch)
}

type bigMapKey struct {
	Value json.RawMessage `json:"value"`
}

func (c *Client) BigMapValue(ctx context.Context, mapID int64, key string) (Document, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v1/bigmaps/%d/keys/%s", mapID, url.PathEscape(key)), nil)
	if err != nil {
		return nil, err
	}
	var k bigMapKey
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("decode big map key: %w", err)
	}
	if len(k.Value) == 0 || string(k.Value) == "null" {
		return nil, ErrNotFound
	}
	return decode(k.Value)
}
