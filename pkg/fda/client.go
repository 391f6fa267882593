// Package fda queries the openFDA drug label and NDC directory endpoints.
package fda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pillid/pkg/result"
)

const (
	defaultBaseURL = "https://api.fda.gov/drug"
	DefaultLimit   = 10
	maxLimit       = 100
)

// Client calls openFDA. The API key is optional.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty baseURL selects the public API.
func NewClient(apiKey, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// phrase quotes a user value for an exact field match.
func phrase(field, value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), `"`, "")
	return field + `:"` + value + `"`
}

// fetch runs one search against endpoint (label.json or ndc.json).
// openFDA answers 404 NOT_FOUND for a search without hits; that is empty,
// not a failure.
func fetch[T any](ctx context.Context, c *Client, endpoint, search string, limit int) result.Result[[]T] {
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", strconv.Itoa(limit))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return result.Failed[[]T](err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("openfda request failed", "endpoint", endpoint, "query", search, "err", err)
		return result.Failed[[]T](err)
	}
	defer resp.Body.Close()

	var body searchResponse[T]
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if body.Error != nil {
		if body.Error.Code == "NOT_FOUND" {
			return result.Empty[[]T]()
		}
		slog.Warn("openfda api error", "endpoint", endpoint, "query", search, "status", resp.StatusCode, "code", body.Error.Code, "err", body.Error.Message)
		return result.Failed[[]T](fmt.Errorf("openfda api error: %s: %s", body.Error.Code, body.Error.Message))
	}
	if resp.StatusCode == http.StatusNotFound {
		return result.Empty[[]T]()
	}
	if resp.StatusCode >= 400 {
		slog.Warn("openfda api error", "endpoint", endpoint, "query", search, "status", resp.StatusCode)
		return result.Failed[[]T](fmt.Errorf("openfda api error: %s", resp.Status))
	}
	if decodeErr != nil {
		slog.Warn("openfda response undecodable", "endpoint", endpoint, "query", search, "err", decodeErr)
		return result.Failed[[]T](fmt.Errorf("decode openfda response: %w", decodeErr))
	}
	if len(body.Results) == 0 {
		return result.Empty[[]T]()
	}
	return result.Found(body.Results)
}
