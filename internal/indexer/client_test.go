package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func fastClient(t *testing.T, endpoint string, hc *http.Client) *Client {
	t.Helper()
	c, err := NewClient(endpoint, "mainnet", "secret", hc)
	require.NoError(t, err)
	c.SetRetry(2, time.Millisecond)
	return c
}

func TestClientPostsQuery(t *testing.T) {
	var gotPath, gotKey string
	var gotBody Query
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apiKey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `[{"key":"Pair 0x00 1","value":"5","block_level":1700000}]`)
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL+"/", srv.Client())
	entries, err := Entries(context.Background(), c, BigMap(6809).Where(FieldKey, EndsWith, " 1").WithLimit(10))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, BigMapEntry{Key: "Pair 0x00 1", Value: "5", BlockLevel: 1700000}, entries[0])

	assert.Equal(t, "/v2/data/tezos/mainnet/big_map_contents", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, 10, gotBody.Limit)
	require.Len(t, gotBody.Predicates, 2)
	assert.Equal(t, EndsWith, gotBody.Predicates[1].Operation)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"timestamp":1631000000000,"internal":true,"amount":"1500000","parameters_entrypoints":"collect"}]`)
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL, srv.Client())
	ops, err := Ops(context.Background(), c, Calls("KT1x"))
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, int64(1631000000000), ops[0].Timestamp)
	assert.True(t, ops[0].Internal)
	assert.Equal(t, int64(1500000), ops[0].Amount)
	assert.Equal(t, "collect", ops[0].Entrypoint)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad predicate", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL, srv.Client())
	_, err := c.Query(context.Background(), Operations, NewQuery())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.False(t, se.Retriable())
	assert.Contains(t, se.Error(), "bad predicate")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls int32
	hc := &http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})}
	c := fastClient(t, "http://indexer.test", hc)
	_, err := c.Query(context.Background(), Operations, NewQuery())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientRetriesThrottling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := fastClient(t, srv.URL, srv.Client())
	rows, err := c.Query(context.Background(), Operations, NewQuery())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientBadJSON(t *testing.T) {
	var calls int32
	hc := &http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("{")), Header: http.Header{}}, nil
	})}
	c := fastClient(t, "http://indexer.test", hc)
	_, err := c.Query(context.Background(), Operations, NewQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode operations rows")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientContextCanceled(t *testing.T) {
	var calls int32
	hc := &http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, r.Context().Err()
	})}
	c := fastClient(t, "http://indexer.test", hc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Query(ctx, Operations, NewQuery())
	require.Error(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("  ", "mainnet", "", nil)
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
	c, err := NewClient("https://user:pw@conseil.example/", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "conseil.example", c.label)
	assert.Equal(t, "https://user:pw@conseil.example/v2/data/tezos/mainnet/operations", c.url(Operations))
}

func TestFactoryAppliesOptions(t *testing.T) {
	q, err := New(Options{Endpoint: "http://indexer.test", Retries: 5, Backoff: 7})
	require.NoError(t, err)
	lim, ok := q.(Limited)
	require.True(t, ok)
	c := lim.q.(*Client)
	assert.Equal(t, 5, c.rc.RetryCount)
	assert.Equal(t, time.Duration(7), c.rc.RetryWaitTime)

	_, err = New(Options{})
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}
