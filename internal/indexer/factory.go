package indexer

import (
	"net/http"
	"time"
)

// Options configures New.
type Options struct {
	Endpoint  string
	Network   string
	APIKey    string
	RateLimit int
	Retries   int
	Backoff   time.Duration
	Timeout   time.Duration
}

// New constructs an HTTP indexer client wrapped with a rate limiter.
func New(o Options) (Querier, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c, err := NewClient(o.Endpoint, o.Network, o.APIKey, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	retries, backoff := 2, 100*time.Millisecond
	if o.Retries > 0 {
		retries = o.Retries
	}
	if o.Backoff > 0 {
		backoff = o.Backoff
	}
	c.SetRetry(retries, backoff)
	return WrapWithLimiter(c, NewLimiter(o.RateLimit)), nil
}
