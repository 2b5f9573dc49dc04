// Package search provides the HTTP client for the third-party people-search
// and enrichment provider.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadloop/leadloop-go/internal/metrics"
)

// DefaultPerPage is the provider's page size for search calls.
const DefaultPerPage = 100

// Client is a JSON-over-HTTP client for the people-search provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// New creates a provider client. Timeout covers one request end to end.
func New(baseURL string, logger *slog.Logger, mc *metrics.Collector) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		metrics: mc,
	}
}

// Params are the provider-side search parameters for one page.
type Params struct {
	Titles    []string `json:"person_titles,omitempty"`
	Locations []string `json:"person_locations,omitempty"`
	Keywords  []string `json:"q_keywords,omitempty"`
	Page      int      `json:"page"`
	PerPage   int      `json:"per_page"`
}

// Hit is one raw search result. Email is frequently absent or locked at
// search time; enrichment resolves it.
type Hit struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"organization_name,omitempty"`
	Location    string `json:"present_raw_address,omitempty"`
	Email       string `json:"email,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
}

// Person is one enriched record keyed by provider id.
type Person struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"organization_name,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
}

type searchResponse struct {
	People []Hit `json:"people"`
}

type enrichResponse struct {
	Matches []Person `json:"matches"`
}

// Search executes one page of the people search.
func (c *Client) Search(ctx context.Context, apiKey string, p Params) ([]Hit, error) {
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.Page <= 0 {
		p.Page = 1
	}

	var resp searchResponse
	if err := c.post(ctx, metrics.OpSearch, apiKey, "/mixed_people/search", p, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	c.logger.Debug("search page fetched", "page", p.Page, "hits", len(resp.People))
	return resp.People, nil
}

// EnrichBatch resolves contact details for up to 10 provider ids, returning
// records keyed by id. Ids the provider could not match are absent.
func (c *Client) EnrichBatch(ctx context.Context, apiKey string, ids []string) (map[string]Person, error) {
	if len(ids) == 0 {
		return map[string]Person{}, nil
	}

	body := map[string]any{"ids": ids, "reveal_personal_emails": false}
	var resp enrichResponse
	if err := c.post(ctx, metrics.OpEnrich, apiKey, "/people/bulk_match", body, &resp); err != nil {
		return nil, fmt.Errorf("enrich batch: %w", err)
	}

	records := make(map[string]Person, len(resp.Matches))
	for _, p := range resp.Matches {
		records[p.ID] = p
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, op, apiKey, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordFailure(op)
		}
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RecordFailure(op)
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(data))
	}

	if c.metrics != nil {
		c.metrics.RecordTiming(op, time.Since(start))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
