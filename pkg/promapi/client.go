package promapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	queryRangePath = "/api/v1/query_range"

	defaultTimeout = 10 * time.Second
)

// Client queries one Prometheus-compatible backend. It is safe for concurrent
// use; all per-call state lives on the stack.
type Client struct {
	endpoint string
	http     *http.Client
}

// New returns a Client for the backend at baseURL (e.g. "http://prometheus:9090").
// A nil hc gets a plain client with a 10s timeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + queryRangePath,
		http:     hc,
	}
}

// Endpoint returns the full query_range URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// QueryRange issues q and returns the series list of the matrix result.
//
// An empty list is a valid answer, not an error. Backend rejections come back
// as *APIError; transport and decode failures wrap ErrNetwork and
// ErrMalformedResponse respectively. The call is never retried.
func (c *Client) QueryRange(ctx context.Context, q RangeQuery) ([]Series, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Values().Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	res, err := Decode(bytes.NewReader(body))
	if err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("http status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	switch r := res.(type) {
	case *Failure:
		slog.Debug("promapi: query rejected",
			"query", q.Query, "http_status", resp.StatusCode, "error_type", r.ErrorType)
		return nil, &APIError{Type: r.ErrorType, Message: r.Message}
	case *Success:
		if len(r.Warnings) > 0 {
			slog.Warn("promapi: query returned warnings", "query", q.Query, "warnings", r.Warnings)
		}
		return r.Series, nil
	default:
		return nil, errors.New("promapi: unknown result variant")
	}
}
