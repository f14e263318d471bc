// Package apiclient talks to the fleet performance REST backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const maxResponseBytes = 4 << 20

// Observer receives one observation per upstream call.
type Observer interface {
	ObserveUpstream(method, route string, status int, elapsed time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *slog.Logger
	Observer   Observer
	HTTPClient *http.Client
}

// Client issues JSON requests against the backend. A Client is cheap to copy with
// WithStore so each session gets its own persistence boundary.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *slog.Logger
	observer  Observer
	store     SessionStore
	onExpired func(context.Context)
	teardown  *singleflight.Group
}

// New constructs a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		logger:   logger,
		observer: cfg.Observer,
		teardown: &singleflight.Group{},
	}
}

// WithStore returns a copy of the client bound to store.
func (c *Client) WithStore(store SessionStore) *Client {
	cp := *c
	cp.store = store
	return &cp
}

// WithExpiryHook returns a copy of the client that calls fn after every
// authentication failure, once the session has been cleared.
func (c *Client) WithExpiryHook(fn func(context.Context)) *Client {
	cp := *c
	cp.onExpired = fn
	return &cp
}

// Timeout reports the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Request sends body as JSON and decodes the response into out. Either may be nil.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var token string
	if c.store != nil {
		token, err = c.store.Token(ctx)
		if err != nil {
			return fmt.Errorf("apiclient: read token: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, path, 0, start)
		c.logger.Warn("upstream request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(method, path, resp.StatusCode, start)
	if err != nil {
		return fmt.Errorf("apiclient: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		httpErr := &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(payload))}
		c.logger.Warn("upstream request rejected",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", httpErr.Body),
		)
		if resp.StatusCode == http.StatusUnauthorized {
			c.expire(ctx, token)
		}
		return httpErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// expire clears the persisted session. Concurrent failures for the same token share one Clear.
func (c *Client) expire(ctx context.Context, token string) {
	if c.store != nil {
		_, err, _ := c.teardown.Do("expire:"+token, func() (any, error) {
			return c.store.Clear(context.WithoutCancel(ctx))
		})
		if err != nil {
			c.logger.Error("clear expired session", slog.Any("error", err))
		}
	}
	if c.onExpired != nil {
		c.onExpired(ctx)
	}
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(method, routeOf(path), status, time.Since(start))
}

// routeOf collapses numeric path segments and drops the query so metric labels stay bounded.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != "" && strings.Trim(seg, "0123456789") == "" {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// list decodes either a bare JSON array or a paginated {"results": [...]} envelope.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return err
		}
		*l = envelope.Results
		return nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*l = items
	return nil
}
