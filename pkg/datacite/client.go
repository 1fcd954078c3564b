// Package datacite provides a client for resolving DOIs registered with
// DataCite (figshare and zenodo deposits).
package datacite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const apiBaseURL = "https://api.datacite.org"

// DataCite asks API consumers to stay well under their burst limits.
const requestsPerSecond = 5.0

var (
	ErrDOINotFound = errors.New("DOI not found in DataCite")
	ErrBadEnvelope = errors.New("unexpected DataCite response shape")
)

// Client is a rate-limited HTTP client for the DataCite REST API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		baseURL: apiBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record is the canonical metadata extracted from a DataCite response.
type Record struct {
	DOI   string `json:"doi"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// API response envelope: the record is nested under data.attributes, and the
// canonical title is the first entry of the titles sequence.
type doiResponse struct {
	Data struct {
		Attributes struct {
			DOI    string `json:"doi"`
			Titles []struct {
				Title string `json:"title"`
			} `json:"titles"`
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup fetches and normalizes the metadata for a DOI. No retries are
// performed; the caller decides.
func (c *Client) Lookup(ctx context.Context, doi string) (*Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/dois/"+doi, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datacite request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: status %d", ErrDOINotFound, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("datacite returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope doiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to parse datacite response: %w", err)
	}

	attrs := envelope.Data.Attributes
	if attrs.DOI == "" || len(attrs.Titles) == 0 {
		return nil, fmt.Errorf("%w: missing doi or titles", ErrBadEnvelope)
	}

	return &Record{
		DOI:   attrs.DOI,
		Title: attrs.Titles[0].Title,
		URL:   attrs.URL,
	}, nil
}
