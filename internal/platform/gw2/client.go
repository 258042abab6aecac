// Package gw2 is the REST client for the Guild Wars 2 public API, covering
// the commerce price feed and the item catalog. The API is unauthenticated
// but rate limited upstream, so every request is paced through the shared
// limiter before it leaves the process.
package gw2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tpbot/internal/domain"
)

// maxIDsPerRequest is the upstream cap on the ids= query parameter.
const maxIDsPerRequest = 200

// Client is the REST client for the GW2 API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	limiter    domain.RateLimiter
	limiterKey string
	rateLimit  int
	rateWindow time.Duration
}

// NewClient creates a GW2 API client.
//
// baseURL is the API root, e.g. "https://api.guildwars2.com/v2". The limiter
// paces all outgoing requests under limit calls per window; pass nil to
// disable pacing.
func NewClient(baseURL string, limiter domain.RateLimiter, limit int, window time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:    limiter,
		limiterKey: "gw2:api",
		rateLimit:  limit,
		rateWindow: window,
	}
}

// ListPriceIDs returns the ids of every item currently tradable on the
// trading post.
func (c *Client) ListPriceIDs(ctx context.Context) ([]int64, error) {
	body, err := c.get(ctx, "/commerce/prices", nil)
	if err != nil {
		return nil, fmt.Errorf("gw2: list price ids: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("gw2: decode price ids: %w", err)
	}
	return ids, nil
}

// GetPrices returns the current commerce prices for the given item ids,
// fanning the request out in chunks of at most 200 ids. Ids the upstream does
// not know are silently absent from the result.
func (c *Client) GetPrices(ctx context.Context, ids []int64) ([]Price, error) {
	prices := make([]Price, 0, len(ids))

	for _, chunk := range chunkIDs(ids, maxIDsPerRequest) {
		params := url.Values{}
		params.Set("ids", joinIDs(chunk))

		body, err := c.get(ctx, "/commerce/prices", params)
		if err != nil {
			return nil, fmt.Errorf("gw2: get prices: %w", err)
		}

		var page []Price
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("gw2: decode prices: %w", err)
		}
		prices = append(prices, page...)
	}

	return prices, nil
}

// GetItems returns catalog entries for the given item ids, chunked like
// GetPrices. Unknown ids are absent from the result.
func (c *Client) GetItems(ctx context.Context, ids []int64) ([]ItemInfo, error) {
	items := make([]ItemInfo, 0, len(ids))

	for _, chunk := range chunkIDs(ids, maxIDsPerRequest) {
		params := url.Values{}
		params.Set("ids", joinIDs(chunk))
		params.Set("lang", "en")

		body, err := c.get(ctx, "/items", params)
		if err != nil {
			return nil, fmt.Errorf("gw2: get items: %w", err)
		}

		var page []ItemInfo
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("gw2: decode items: %w", err)
		}
		items = append(items, page...)
	}

	return items, nil
}

// GetItem returns the catalog entry for a single item. Returns
// domain.ErrNotFound when the upstream does not know the id.
func (c *Client) GetItem(ctx context.Context, id int64) (ItemInfo, error) {
	params := url.Values{}
	params.Set("lang", "en")

	body, err := c.get(ctx, "/items/"+strconv.FormatInt(id, 10), params)
	if err != nil {
		return ItemInfo{}, fmt.Errorf("gw2: get item %d: %w", id, err)
	}

	var item ItemInfo
	if err := json.Unmarshal(body, &item); err != nil {
		return ItemInfo{}, fmt.Errorf("gw2: decode item %d: %w", id, err)
	}
	return item, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get paces, sends, and reads a GET request against the API.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.limiterKey, c.rateLimit, c.rateWindow); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Text)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Text)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, apiErr.Text)
	}
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for len(ids) > 0 {
		n := size
		if len(ids) < n {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}

// joinIDs renders ids as the comma-separated form the ids= parameter takes.
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
