// Package ipfs fetches content-addressed JSON through a list of gateways and
// asks a pinning service to keep resolved hashes available.
package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AIAleph/mvp_market_context/internal/logging"
)

var ErrUnavailable = errors.New("ipfs: no gateway returned the content")

// DefaultGateways are tried in order.
var DefaultGateways = []string{
	"http://127.0.0.1:8080/ipfs/",
	"https://infura-ipfs.io/ipfs/",
	"https://dweb.link/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
}

// Pinner credentials and endpoint for a pinByHash style API.
type Pinner struct {
	URL       string
	APIKey    string
	APISecret string
}

func (p Pinner) enabled() bool { return p.URL != "" && p.APIKey != "" && p.APISecret != "" }

// Client fetches from gateways with a per-gateway timeout.
type Client struct {
	gateways []string
	timeout  time.Duration
	pinner   Pinner
	rc       *resty.Client
}

func New(gateways []string, timeout time.Duration, pinner Pinner, hc *http.Client) *Client {
	if len(gateways) == 0 {
		gateways = DefaultGateways
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	if hc == nil {
		hc = &http.Client{}
	}
	gs := make([]string, len(gateways))
	for i, g := range gateways {
		if !strings.HasSuffix(g, "/") {
			g += "/"
		}
		gs[i] = g
	}
	return &Client{gateways: gs, timeout: timeout, pinner: pinner, rc: resty.NewWithClient(hc)}
}

// Get returns the raw bytes stored under hash from the first gateway that
// answers 2xx within the timeout.
func (c *Client) Get(ctx context.Context, hash string) ([]byte, error) {
	var errs []error
	for _, g := range c.gateways {
		body, err := c.fetch(ctx, g+hash)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	logging.Logger().Warn("ipfs_unavailable", "component", "ipfs", "hash", hash, "error", errors.Join(errs...).Error())
	return nil, ErrUnavailable
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.rc.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode()/100 != 2 {
		return nil, fmt.Errorf("%s: http %d", u, resp.StatusCode())
	}
	return resp.Body(), nil
}

// GetJSON decodes the content under hash into out.
func (c *Client) GetJSON(ctx context.Context, hash string, out any) error {
	b, err := c.Get(ctx, hash)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", hash, err)
	}
	return nil
}

type pinRequest struct {
	HashToPin      string `json:"hashToPin"`
	PinataMetadata struct {
		Name string `json:"name"`
	} `json:"pinataMetadata"`
}

// PinNow asks the pinning service to pin hash under name.
func (c *Client) PinNow(ctx context.Context, hash, name string) error {
	if !c.pinner.enabled() {
		return nil
	}
	var body pinRequest
	body.HashToPin = hash
	body.PinataMetadata.Name = name
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("pinata_api_key", c.pinner.APIKey).
		SetHeader("pinata_secret_api_key", c.pinner.APISecret).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.pinner.URL)
	if err != nil {
		return err
	}
	if resp.StatusCode()/100 != 2 {
		return fmt.Errorf("pin %s: http %d", hash, resp.StatusCode())
	}
	return nil
}

// Pin is fire-and-forget: failures are logged and never reach the caller.
func (c *Client) Pin(hash, name string) {
	if !c.pinner.enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.PinNow(ctx, hash, name); err != nil {
			logging.Logger().Warn("ipfs_pin_failed", "component", "ipfs", "hash", hash, "error", err.Error())
		}
	}()
}
