package coincap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinfolio/internal/domain"
)

const defaultTimeout = 10 * time.Second

// HTTPClient describes the HTTP client used to reach the provider.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin wrapper around the CoinCap REST API. It carries the bearer
// credential on every request and classifies HTTP failures; it does no caching
// and no retries — callers own concurrency and cadence.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Useful for tests and custom timeouts.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a CoinCap client for the given base URL and API key.
func New(baseURL, apiKey string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type assetData struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	PriceUSD string `json:"priceUsd"`
}

type assetsResponse struct {
	Data []assetData `json:"data"`
}

type assetResponse struct {
	Data assetData `json:"data"`
}

// FetchAllAssets fetches the full catalog of known assets (id + symbol pairs).
// Used once at bootstrap to rebuild the symbol mapping table.
func (c *Client) FetchAllAssets(ctx context.Context) ([]domain.SymbolMapping, error) {
	body, err := c.get(ctx, "/assets")
	if err != nil {
		return nil, err
	}

	var resp assetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("coincap: decode /assets response: %w", err)
	}

	mappings := make([]domain.SymbolMapping, 0, len(resp.Data))
	for _, a := range resp.Data {
		mappings = append(mappings, domain.SymbolMapping{AssetID: a.ID, Symbol: a.Symbol})
	}
	return mappings, nil
}

// FetchLatestPrice fetches the current price for one provider asset id.
// The id is lower-cased before transmission, so callers may pass any casing.
func (c *Client) FetchLatestPrice(ctx context.Context, assetID string) (domain.PriceQuote, error) {
	assetID = strings.ToLower(strings.TrimSpace(assetID))

	body, err := c.get(ctx, "/assets/"+assetID)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	var resp assetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coincap: decode /assets/%s response: %w", assetID, err)
	}

	price, err := decimal.NewFromString(resp.Data.PriceUSD)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coincap: parse priceUsd %q for %s: %w", resp.Data.PriceUSD, assetID, err)
	}

	return domain.PriceQuote{
		AssetID:   resp.Data.ID,
		Symbol:    resp.Data.Symbol,
		PriceUSD:  price,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Body: string(body)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientError{Status: resp.StatusCode, Body: string(body)}
	case resp.StatusCode >= 500:
		return nil, &ServerError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
