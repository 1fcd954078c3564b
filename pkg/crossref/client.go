// Package crossref provides a client for resolving DOIs via the Crossref
// works API.
package crossref

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

const apiBaseURL = "https://api.crossref.org"

// userAgent identifies us for Crossref's polite pool.
const userAgent = "CanteraPapers/0.1 (https://cantera.org/paper; mailto:developers@cantera.org)"

const requestsPerSecond = 10.0

var (
	ErrDOINotFound = errors.New("DOI not found in Crossref")
	ErrBadEnvelope = errors.New("unexpected Crossref response shape")
)

// Client is a rate-limited HTTP client for the Crossref REST API.
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

// Record is the canonical metadata extracted from a Crossref response.
type Record struct {
	DOI   string `json:"doi"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// API response envelope: the record is nested under message; title is a list
// whose first entry is canonical, and the DOI/URL keys are upper-case in the
// upstream schema.
type workResponse struct {
	Message struct {
		DOI   string   `json:"DOI"`
		Title []string `json:"title"`
		URL   string   `json:"URL"`
	} `json:"message"`
}

// Lookup fetches and normalizes the metadata for a DOI. No retries are
// performed; the caller decides.
func (c *Client) Lookup(ctx context.Context, doi string) (*Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/works/"+doi, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: status %d", ErrDOINotFound, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("crossref returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope workResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to parse crossref response: %w", err)
	}

	msg := envelope.Message
	if msg.DOI == "" || len(msg.Title) == 0 {
		return nil, fmt.Errorf("%w: missing DOI or title", ErrBadEnvelope)
	}

	return &Record{
		DOI:   msg.DOI,
		Title: msg.Title[0],
		URL:   msg.URL,
	}, nil
}
