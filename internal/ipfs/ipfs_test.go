package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFallsThroughGateways(t *testing.T) {
	var slowHits, badHits int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&slowHits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&badHits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/QmPack", r.URL.Path)
		_, _ = io.WriteString(w, `{"title":"Spring pack"}`)
	}))
	defer good.Close()

	c := New([]string{slow.URL + "/ipfs", bad.URL + "/ipfs/", good.URL + "/ipfs/"}, 50*time.Millisecond, Pinner{}, nil)
	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "QmPack", &out))
	assert.Equal(t, "Spring pack", out.Title)
	assert.Equal(t, int32(1), atomic.LoadInt32(&slowHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&badHits))
}

func TestGetUnavailable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()
	c := New([]string{bad.URL + "/ipfs/"}, time.Second, Pinner{}, nil)
	_, err := c.Get(context.Background(), "QmMissing")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()
	c := New([]string{srv.URL + "/ipfs/"}, time.Second, Pinner{}, nil)
	var out map[string]any
	err := c.GetJSON(context.Background(), "QmX", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode QmX")
}

func TestPinNowSendsCredentials(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
	}))
	defer srv.Close()

	c := New(nil, time.Second, Pinner{URL: srv.URL, APIKey: "key", APISecret: "secret"}, nil)
	c.Pin("QmPack", "pack-7")
	select {
	case body := <-got:
		assert.Equal(t, "QmPack", body["hashToPin"])
		assert.Equal(t, map[string]any{"name": "pack-7"}, body["pinataMetadata"])
	case <-time.After(2 * time.Second):
		t.Fatal("pin request not sent")
	}
}

func TestPinDisabledWithoutCredentials(t *testing.T) {
	c := New(nil, 0, Pinner{URL: "http://unused"}, nil)
	assert.NoError(t, c.PinNow(context.Background(), "Qm", "x"))
	c.Pin("Qm", "x")
	assert.Len(t, c.gateways, len(DefaultGateways))
	assert.Equal(t, time.Second, c.timeout)
}
