package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client calls the Bot API methods used for webhook setup.
type Client interface {
	SetWebhook(ctx context.Context, webhookURL string) error
	GetWebhookInfo(ctx context.Context) (*WebhookInfo, error)
}

// WebhookInfo is the getWebhookInfo result.
type WebhookInfo struct {
	URL                  string   `json:"url"`
	HasCustomCertificate bool     `json:"has_custom_certificate"`
	PendingUpdateCount   int      `json:"pending_update_count"`
	LastErrorDate        int64    `json:"last_error_date,omitempty"`
	LastErrorMessage     string   `json:"last_error_message,omitempty"`
	MaxConnections       int      `json:"max_connections,omitempty"`
	AllowedUpdates       []string `json:"allowed_updates,omitempty"`
}

// LastError returns the time of the last delivery error, if any.
func (w *WebhookInfo) LastError() (time.Time, bool) {
	if w.LastErrorDate == 0 {
		return time.Time{}, false
	}
	return time.Unix(w.LastErrorDate, 0).UTC(), true
}

// APIError is a Bot API reply with ok=false.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom Bot API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Bot API client for token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.telegram.org",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SetWebhook(ctx context.Context, webhookURL string) error {
	q := url.Values{"url": {webhookURL}}
	_, err := c.call(ctx, "setWebhook", q)
	return err
}

func (c *httpClient) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	raw, err := c.call(ctx, "getWebhookInfo", nil)
	if err != nil {
		return nil, err
	}
	var info WebhookInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, eris.Wrap(err, "telegram: decode webhook info")
	}
	return &info, nil
}

func (c *httpClient) call(ctx context.Context, method string, q url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + "/bot" + c.token + "/" + method
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "telegram: create %s request", method)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token, so drop it from the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, eris.Wrapf(err, "telegram: %s", method)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "telegram: read %s response", method)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrapf(err, "telegram: decode %s response (status %d)", method, resp.StatusCode)
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Code: code, Description: out.Description}
	}
	return out.Result, nil
}

// ResolveWebhookURL accepts either the webhook URL itself or a Bot API
// setWebhook link, and returns the URL Telegram should deliver to.
func ResolveWebhookURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", eris.New("telegram: webhook url is empty")
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("telegram: invalid webhook url %q", s)
	}
	if !strings.Contains(u.Hostname(), "api.telegram.org") {
		return s, nil
	}
	target := u.Query().Get("url")
	if target == "" {
		return "", eris.New("telegram: setWebhook link has no url parameter")
	}
	return target, nil
}
