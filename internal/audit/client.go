// Package audit fetches token risk attributes from a batched security API.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stormdex/internal/model"
)

const (
	DefaultBaseURL = "https://api.gopluslabs.io/api/v1"
	DefaultChain   = "sui"
	DefaultTimeout = 30 * time.Second
)

var (
	ErrStatus = errors.New("unexpected status code")
	// ErrUpstream is returned when the API answers with a non-success code.
	ErrUpstream = errors.New("upstream rejected request")
)

type securityResponse struct {
	Code    int                      `json:"code"`
	Message string                   `json:"message"`
	Result  map[string]tokenSecurity `json:"result"`
}

type tokenSecurity struct {
	IsMintable string `json:"is_mintable"`
	LPBurned   string `json:"lp_burned"`
	IsHoneypot string `json:"is_honeypot"`
}

// Client requests risk attributes for many token addresses in one call.
type Client struct {
	baseURL    string
	chain      string
	httpClient *resty.Client
}

type Option func(*Client)

func WithHTTPClient(client *resty.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.SetTimeout(d)
	}
}

func WithRetries(n int) Option {
	return func(c *Client) {
		c.httpClient.SetRetryCount(n)
	}
}

func NewClient(baseURL, chain string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if chain == "" {
		chain = DefaultChain
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		chain:   chain,
		httpClient: resty.New().SetTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
		}).SetTimeout(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAudits issues one request for all addresses and returns the records
// keyed by the requested address. Addresses the API omits are absent.
func (c *Client) FetchAudits(ctx context.Context, addresses []string) (map[string]model.AuditRecord, error) {
	if len(addresses) == 0 {
		return map[string]model.AuditRecord{}, nil
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("contract_addresses", strings.Join(addresses, ",")).
		Get(fmt.Sprintf("%s/token_security/%s", c.baseURL, url.PathEscape(c.chain)))
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	var out securityResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Code != 1 {
		return nil, fmt.Errorf("%w: code %d: %s", ErrUpstream, out.Code, out.Message)
	}

	// Upstream may change the case of returned keys.
	requested := make(map[string]string, len(addresses))
	for _, addr := range addresses {
		requested[strings.ToLower(addr)] = addr
	}

	records := make(map[string]model.AuditRecord, len(out.Result))
	for key, sec := range out.Result {
		addr, ok := requested[strings.ToLower(key)]
		if !ok {
			continue
		}
		records[addr] = model.AuditRecord{
			Address:        addr,
			Mintable:       model.ParseFlag(sec.IsMintable),
			LiquidityBurnt: model.ParseFlag(sec.LPBurned),
			Honeypot:       model.ParseFlag(sec.IsHoneypot),
		}
	}
	return records, nil
}
