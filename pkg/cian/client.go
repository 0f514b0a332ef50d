// Package cian wraps Cian's internal search-offers JSON API.
package cian

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.cian.ru"

// Client defines the Cian API operations used by the pipeline.
type Client interface {
	SearchOffers(ctx context.Context, q SearchQuery) (*SearchResponse, error)
}

// ClientOption configures the Cian client.
type ClientOption func(*client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(u string) ClientOption {
	return func(c *client) { c.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *client) { c.userAgent = ua }
}

// WithRateLimit overrides the default request rate (0.5 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *client) { c.http = hc }
}

type client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

// NewClient creates a Cian API client. Requests are throttled to half a
// request per second by default; the site tolerates little more.
func NewClient(opts ...ClientOption) Client {
	c := &client{
		http:      &http.Client{Timeout: 45 * time.Second},
		baseURL:   defaultBaseURL,
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		limiter:   rate.NewLimiter(0.5, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "cian: unexpected status " + http.StatusText(e.StatusCode)
}

func (c *client) SearchOffers(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "cian: rate limit")
	}

	body, err := json.Marshal(buildJSONQuery(q))
	if err != nil {
		return nil, eris.Wrap(err, "cian: marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/search-offers/v2/search-offers-desktop/", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "cian: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Origin", "https://www.cian.ru")
	req.Header.Set("Referer", "https://www.cian.ru/")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "cian: search offers")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(&StatusError{StatusCode: resp.StatusCode}, "cian: search offers page %d", q.Page)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "cian: decode response")
	}
	return &out, nil
}

// buildJSONQuery assembles the jsonQuery document the search API expects.
func buildJSONQuery(q SearchQuery) map[string]any {
	region := q.RegionID
	if region == 0 {
		region = 1
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	jq := map[string]any{
		"_type":          "flatSale",
		"engine_version": map[string]any{"type": "term", "value": 2},
		"region":         map[string]any{"type": "terms", "value": []int{region}},
		"page":           map[string]any{"type": "term", "value": page},
		"sort":           map[string]any{"type": "term", "value": "creation_date_desc"},
	}

	if q.MinArea > 0 || q.MaxArea > 0 {
		area := map[string]any{}
		if q.MinArea > 0 {
			area["gte"] = q.MinArea
		}
		if q.MaxArea > 0 {
			area["lte"] = q.MaxArea
		}
		jq["total_area"] = map[string]any{"type": "range", "value": area}
	}
	if q.MaxPrice > 0 {
		jq["price"] = map[string]any{"type": "range", "value": map[string]any{"lte": q.MaxPrice}}
	}
	if len(q.DistrictIDs) > 0 {
		geo := make([]map[string]any, len(q.DistrictIDs))
		for i, id := range q.DistrictIDs {
			geo[i] = map[string]any{"type": "district", "id": id}
		}
		jq["geo"] = map[string]any{"type": "geo", "value": geo}
	}
	if len(q.Rooms) > 0 {
		jq["room"] = map[string]any{"type": "terms", "value": q.Rooms}
	}
	if q.NotFirstFloor {
		jq["is_first_floor"] = map[string]any{"type": "term", "value": false}
	}

	return map[string]any{"jsonQuery": jq}
}
