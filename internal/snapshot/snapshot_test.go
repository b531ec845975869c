package snapshot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	c.rc.SetRetryWaitTime(1).SetRetryMaxWaitTime(1)
	return c, srv
}

func TestContractStorageAtLevelIsCached(t *testing.T) {
	var calls int32
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/contracts/KT1abc/storage", r.URL.Path)
		assert.Equal(t, "1700000", r.URL.Query().Get("level"))
		_, _ = io.WriteString(w, `{"swap_id":"17","auction_id":3,"manager":"tz1x"}`)
	})
	for i := 0; i < 2; i++ {
		d, err := c.ContractStorage(context.Background(), "KT1abc", 1700000)
		require.NoError(t, err)
		id, ok := d.Int("swap_id")
		require.True(t, ok)
		assert.Equal(t, int64(17), id)
		id, ok = d.Int("auction_id")
		require.True(t, ok)
		assert.Equal(t, int64(3), id)
		s, ok := d.String("manager")
		assert.True(t, ok)
		assert.Equal(t, "tz1x", s)
		_, ok = d.Int("manager")
		assert.False(t, ok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestContractStorageLatestIsNotCached(t *testing.T) {
	var calls int32
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Empty(t, r.URL.Query().Get("level"))
		_, _ = io.WriteString(w, `{"gacha_id":"4"}`)
	})
	for i := 0; i < 2; i++ {
		_, err := c.ContractStorage(context.Background(), "KT1abc", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBigMapValue(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bigmaps/6821/keys/17":
			_, _ = io.WriteString(w, `{"key":"17","active":false,"value":{"xtz_per_akaOBJ":"1500000","issuer":"tz1x"}}`)
		case "/v1/bigmaps/6821/keys/18":
			w.WriteHeader(http.StatusNoContent)
		default:
			_, _ = io.WriteString(w, `{"key":"1","value":null}`)
		}
	})
	d, err := c.BigMapValue(context.Background(), 6821, "17")
	require.NoError(t, err)
	price, ok := d.Int("xtz_per_akaOBJ")
	require.True(t, ok)
	assert.Equal(t, int64(1500000), price)

	_, err = c.BigMapValue(context.Background(), 6821, "18")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = c.BigMapValue(context.Background(), 6821, "19")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"swap_id":"1"}`)
	})
	_, err := c.ContractStorage(context.Background(), "KT1abc", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientErrorStatus(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := c.ContractStorage(context.Background(), "KT1abc", 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "http 400")
}

func TestNewClientRejectsEmpty(t *testing.T) {
	_, err := NewClient(" ", nil)
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}
