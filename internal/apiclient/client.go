// Package apiclient is the portal's gateway to the payment API. It attaches
// the session token to every call and tears the session down on a 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	internal "github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 32 << 20

	TeardownReasonExpired = "expired"
)

// TokenStore is the part of the session store the client needs.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context, reason string) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	store      TokenStore
	logger     *slog.Logger
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithStore returns a copy of c bound to one visitor's session.
func (c *Client) WithStore(store TokenStore) *Client {
	cp := *c
	cp.store = store
	return &cp
}

type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type call struct {
	endpoint    string
	method      string
	path        string
	body        io.Reader
	contentType string
	fallback    string
}

func (c *Client) do(ctx context.Context, cl call) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if traceID := internal.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	var token string
	if c.store != nil {
		if token, err = c.store.Token(ctx); err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(cl.endpoint, "error").Observe(time.Since(start).Seconds())
		c.logger.Error("payment API call failed", "endpoint", cl.endpoint, "error", err)
		return nil, fmt.Errorf("%s: %w", cl.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	metrics.UpstreamRequestDuration.WithLabelValues(cl.endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", cl.endpoint, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.expire(ctx, cl.endpoint, token != "")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body, cl.fallback)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body, cl.fallback)}
		c.logger.Warn("payment API returned an error",
			"endpoint", cl.endpoint,
			"status", resp.StatusCode,
			"message", apiErr.Message)
		return nil, apiErr
	}

	return &response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// expire tears the session down after a 401, whatever view made the call.
// Only a call that carried a token counts as an expired session.
func (c *Client) expire(ctx context.Context, endpoint string, hadToken bool) {
	if hadToken {
		metrics.SessionTeardownsTotal.WithLabelValues(TeardownReasonExpired).Inc()
		c.logger.Info("payment API rejected the session token", "endpoint", endpoint)
	}
	if c.store == nil {
		return
	}
	// the clear must happen even if the caller's context is already done
	if err := c.store.Clear(context.WithoutCancel(ctx), TeardownReasonExpired); err != nil {
		c.logger.Error("failed to clear expired session", "error", err)
	}
}

func (c *Client) doJSON(ctx context.Context, cl call, in, out interface{}) error {
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", cl.endpoint, err)
		}
		cl.body = bytes.NewReader(payload)
		cl.contentType = "application/json"
	}

	resp, err := c.do(ctx, cl)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cl.endpoint, err)
	}
	return nil
}

// GetJSON fetches path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, call{endpoint: "get_json", method: http.MethodGet, path: path, fallback: "Request failed"}, nil, out)
}

// PutJSON sends in as JSON to path and decodes the reply into out.
func (c *Client) PutJSON(ctx context.Context, path string, in, out interface{}) error {
	return c.doJSON(ctx, call{endpoint: "put_json", method: http.MethodPut, path: path, fallback: "Request failed"}, in, out)
}

func decode(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}
