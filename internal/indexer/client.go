package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AIAleph/mvp_market_context/internal/logging"
)

var ErrEmptyEndpoint = errors.New("indexer: empty endpoint")

// StatusError is a non-2xx indexer response.
type StatusError struct {
	Code   int
	Body   string
	Entity Entity
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("indexer %s http %d: %s", e.Entity, e.Code, e.Body)
}

// Retriable reports whether the request may succeed when repeated.
func (e *StatusError) Retriable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// retryCondition repeats transport errors and retriable statuses, never
// canceled requests.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return (&StatusError{Code: r.StatusCode()}).Retriable()
}

// Client posts queries to <endpoint>/v2/data/tezos/<network>/<entity>.
// Rate limiting is left to the Limited wrapper.
type Client struct {
	endpoint string
	network  string
	apiKey   string
	label    string
	rc       *resty.Client
}

// NewClient builds a client over hc (a default client when nil).
func NewClient(endpoint, network, apiKey string, hc *http.Client) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if network == "" {
		network = "mainnet"
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		endpoint: endpoint,
		network:  network,
		apiKey:   apiKey,
		label:    deriveLabel(endpoint),
		rc:       resty.NewWithClient(hc).AddRetryCondition(retryCondition),
	}
	c.SetRetry(2, 100*time.Millisecond)
	return c, nil
}

// SetRetry sets how often a failed query is repeated and the first wait
// between attempts. Waits grow exponentially with jitter.
func (c *Client) SetRetry(count int, base time.Duration) {
	c.rc.SetRetryCount(count).
		SetRetryWaitTime(base).
		SetRetryMaxWaitTime(base << count)
}

func deriveLabel(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}

func (c *Client) url(entity Entity) string {
	return fmt.Sprintf("%s/v2/data/tezos/%s/%s", c.endpoint, c.network, entity)
}

// Query implements Querier.
func (c *Client) Query(ctx context.Context, entity Entity, q Query) (rows []Row, err error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	start := time.Now()
	attempts := 0
	defer func() {
		fields := []any{
			"component", "indexer.client",
			"indexer", c.label,
			"entity", string(entity),
			"predicates", len(q.Predicates),
			"rows", len(rows),
			"attempts", attempts,
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logging.Logger().Warn("indexer_query_failed", append(fields, "error", err.Error())...)
			return
		}
		logging.Logger().Debug("indexer_query", fields...)
	}()

	rows, attempts, err = c.do(ctx, entity, body)
	return rows, err
}

func (c *Client) do(ctx context.Context, entity Entity, body []byte) ([]Row, int, error) {
	req := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if c.apiKey != "" {
		req.SetHeader("apiKey", c.apiKey)
	}
	resp, err := req.Post(c.url(entity))
	attempts := req.Attempt
	if err != nil {
		return nil, attempts, err
	}
	if resp.StatusCode()/100 != 2 {
		return nil, attempts, &StatusError{Code: resp.StatusCode(), Body: truncate(resp.String(), 256), Entity: entity}
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, attempts, fmt.Errorf("decode %s rows: %w", entity, err)
	}
	return rows, attempts, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
