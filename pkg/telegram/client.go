// Package telegram is a minimal Telegram Bot API client covering the
// notification and long-poll control surface.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.telegram.org"

// Client defines the Telegram Bot API operations used by this application.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// ClientOption configures the Telegram client.
type ClientOption func(*botClient)

// WithBaseURL overrides the API endpoint. Tests point this at a local server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *botClient) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *botClient) { c.http = hc }
}

// WithRateLimit overrides the default send rate (1 msg/s per chat is
// Telegram's guidance).
func WithRateLimit(rps float64) ClientOption {
	return func(c *botClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	StatusCode  int
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telegram: status %d: %s", e.StatusCode, e.Description)
}

type botClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Telegram Bot API client for the given bot token.
func NewClient(token string, opts ...ClientOption) Client {
	c := &botClient{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 90 * time.Second},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *botClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "telegram: rate limit")
		}
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return eris.Wrap(err, "telegram: marshal sendMessage")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "telegram: build sendMessage request")
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *botClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	q := url.Values{}
	if offset != 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}
	if timeout > 0 {
		q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: build getUpdates request")
	}

	result, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, eris.Wrap(err, "telegram: decode updates")
	}
	return updates, nil
}

func (c *botClient) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

func (c *botClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: read response")
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, eris.Wrapf(err, "telegram: decode response (status %d)", resp.StatusCode)
	}
	if !api.OK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Description: api.Description}
	}
	return api.Result, nil
}
