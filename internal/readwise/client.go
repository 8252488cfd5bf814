// Package readwise submits highlight batches to the Readwise API.
package readwise

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hlsync/hlsync/internal/highlight"
	"go.uber.org/zap"
)

// DefaultURL is the Readwise bulk highlight creation endpoint.
const DefaultURL = "https://readwise.io/api/v2/highlights/"

// maxBodyCapture bounds how much of an error response body is kept for
// diagnostics.
const maxBodyCapture = 8 << 10

// ErrMissingToken indicates no API token was configured. The sync runner
// checks for it before any network call, so a misconfigured non-preview run
// fails without side effects.
var ErrMissingToken = errors.New("readwise API token is not set")

// DeliveryError describes a failed submission: either a transport failure or
// a non-2xx response. The response body, when available, is captured for
// diagnostics. A run that ends in a DeliveryError leaves the watermark
// untouched, so the next invocation retries the same records.
type DeliveryError struct {
	StatusCode int    // 0 when the request never produced a response
	Body       string // response body, truncated
	Err        error  // underlying transport error, if any
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("readwise delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("readwise delivery failed: status %d: %s", e.StatusCode, e.Body)
}

// Unwrap exposes the transport error for errors.Is/As.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Config holds client configuration.
type Config struct {
	// URL is the endpoint to POST batches to. Defaults to DefaultURL.
	URL string

	// Token is the Readwise API token. May be empty for preview-only use;
	// Submit rejects an empty token before any network I/O.
	Token string

	// HTTPClient is the client used for requests. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client

	// Logger for request outcomes. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Client submits highlight batches to Readwise. It performs exactly one
// request per Submit call and never retries internally; retry policy belongs
// to the caller (in practice: the next scheduled run).
type Client struct {
	url    string
	token  string
	http   *http.Client
	logger *zap.Logger
}

// New creates a Readwise client from cfg, applying defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		url:    cfg.URL,
		token:  cfg.Token,
		http:   cfg.HTTPClient,
		logger: cfg.Logger,
	}
}

// HasToken reports whether a token is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Submit POSTs the batch to the endpoint as a single request with
// token authorization. Any transport failure or non-2xx response returns a
// *DeliveryError; nil means the whole batch was accepted.
func (c *Client) Submit(ctx context.Context, batch highlight.Batch) error {
	if c.token == "" {
		return ErrMissingToken
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("delivery request failed", zap.Error(err))
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		captured, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyCapture))
		c.logger.Warn("delivery rejected",
			zap.Int("status", resp.StatusCode),
			zap.Int("batch_size", batch.Len()))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(captured)}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("batch delivered",
		zap.Int("batch_size", batch.Len()),
		zap.Int("status", resp.StatusCode))
	return nil
}
