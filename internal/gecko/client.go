// Package gecko is a REST client for the venue's pool listing API.
package gecko

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
	DefaultBaseURL = "https://api.geckoterminal.com/api/v2"
	DefaultNetwork = "sui-network"

	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// MinSearchLength is the shortest query sent to the search endpoint.
	MinSearchLength = 3
)

var (
	// ErrStatus is returned for non-2xx upstream responses.
	ErrStatus = errors.New("unexpected status code")
	// ErrShape is returned when a response lacks its top-level data member.
	ErrShape = errors.New("malformed response")
)

var timeframes = map[string]struct{}{
	"minute": {},
	"hour":   {},
	"day":    {},
}

// Client talks to the listing, trade, candlestick and search endpoints of one network.
type Client struct {
	baseURL    string
	network    string
	httpClient *resty.Client
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying resty client.
func WithHTTPClient(client *resty.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.SetTimeout(d)
	}
}

// WithRetries sets the transport-level retry count. Zero disables retries.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.httpClient.SetRetryCount(n)
	}
}

func NewClient(baseURL, network string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if network == "" {
		network = DefaultNetwork
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		network: network,
		httpClient: resty.New().SetTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
		}).SetTimeout(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Network returns the network slug the client is bound to.
func (c *Client) Network() string {
	return c.network
}

// NewPools fetches one page of the newest pools with their base tokens included.
func (c *Client) NewPools(ctx context.Context, page int) (ListingPage, error) {
	var out ListingPage
	path := fmt.Sprintf("/networks/%s/new_pools", url.PathEscape(c.network))
	params := map[string]string{
		"include": "base_token",
		"page":    fmt.Sprintf("%d", page),
	}
	if err := c.get(ctx, path, params, &out); err != nil {
		return ListingPage{}, fmt.Errorf("new pools page %d: %w", page, err)
	}
	if out.Data == nil {
		return ListingPage{}, fmt.Errorf("new pools page %d: %w", page, ErrShape)
	}
	return out, nil
}

// Trades fetches the recent trade history of a pool.
func (c *Client) Trades(ctx context.Context, poolAddress string) ([]model.Trade, error) {
	var out tradesResponse
	path := fmt.Sprintf("/networks/%s/pools/%s/trades", url.PathEscape(c.network), url.PathEscape(poolAddress))
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("trades %s: %w", poolAddress, err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("trades %s: %w", poolAddress, ErrShape)
	}

	trades := make([]model.Trade, 0, len(out.Data))
	for _, item := range out.Data {
		attrs := item.Attributes
		volume, _ := attrs.VolumeInUSD.Float()
		ts, err := ParseTimestamp(attrs.BlockTimestamp)
		if err != nil {
			return nil, fmt.Errorf("trades %s: parse block timestamp: %w", poolAddress, err)
		}
		trades = append(trades, model.Trade{
			Sender:    attrs.TxFromAddress,
			VolumeUSD: volume,
			Side:      strings.ToLower(attrs.Kind),
			Timestamp: ts,
		})
	}
	return trades, nil
}

// OHLCV fetches candlesticks of a pool for the given timeframe (minute, hour or day).
func (c *Client) OHLCV(ctx context.Context, poolAddress, timeframe string) ([]model.Candle, error) {
	if timeframe == "" {
		timeframe = "minute"
	}
	if _, ok := timeframes[timeframe]; !ok {
		return nil, fmt.Errorf("invalid timeframe: %s", timeframe)
	}

	var out ohlcvResponse
	path := fmt.Sprintf("/networks/%s/pools/%s/ohlcv/%s", url.PathEscape(c.network), url.PathEscape(poolAddress), timeframe)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("ohlcv %s: %w", poolAddress, err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("ohlcv %s: %w", poolAddress, ErrShape)
	}

	candles := make([]model.Candle, 0, len(out.Data.Attributes.OHLCVList))
	for _, row := range out.Data.Attributes.OHLCVList {
		if len(row) < 6 {
			return nil, fmt.Errorf("ohlcv %s: row has %d fields: %w", poolAddress, len(row), ErrShape)
		}
		candles = append(candles, model.Candle{
			Time:   int64(row[0]),
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	return candles, nil
}

// SearchPools returns the distinct base tokens of pools matching query.
// Queries shorter than MinSearchLength return no results without a request.
func (c *Client) SearchPools(ctx context.Context, query string) ([]model.TokenMetadata, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinSearchLength {
		return []model.TokenMetadata{}, nil
	}

	var out ListingPage
	params := map[string]string{
		"query":   query,
		"network": c.network,
		"include": "base_token",
		"page":    "1",
	}
	if err := c.get(ctx, "/search/pools", params, &out); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	tokens := DedupTokens(out.Included)
	results := make([]model.TokenMetadata, 0, len(tokens))
	for _, token := range tokens {
		results = append(results, token.Metadata())
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	req := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
