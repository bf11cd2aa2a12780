// Package exa is a thin HTTP client for the Exa people-search API: the
// synchronous /search endpoint and the item listing for completed webset jobs.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.exa.ai"

	// Fixed request shape for people search
	numResults    = 20
	maxCharacters = 1000
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Result is one ranked hit from the synchronous search endpoint.
type Result struct {
	ID    string  `json:"id"`
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type searchRequest struct {
	Query      string         `json:"query"`
	Type       string         `json:"type"`
	Category   string         `json:"category"`
	NumResults int            `json:"numResults"`
	Contents   searchContents `json:"contents"`
}

type searchContents struct {
	Text textOptions `json:"text"`
}

type textOptions struct {
	MaxCharacters int `json:"maxCharacters"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs a neural people-category search with a bounded text excerpt per
// result.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	body := searchRequest{
		Query:      query,
		Type:       "neural",
		Category:   "people",
		NumResults: numResults,
		Contents:   searchContents{Text: textOptions{MaxCharacters: maxCharacters}},
	}

	var resp searchResponse
	if err := c.post(ctx, "/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// WebsetItem is one item of a completed webset job, with enrichments expanded.
type WebsetItem struct {
	ID          string         `json:"id"`
	Properties  ItemProperties `json:"properties"`
	Enrichments []Enrichment   `json:"enrichments"`
}

type ItemProperties struct {
	Type        string            `json:"type"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Person      *PersonProperties `json:"person,omitempty"`
}

type PersonProperties struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
	Location string `json:"location"`
	Email    string `json:"email"`
}

type Enrichment struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Prompt      string      `json:"prompt"`
	Result      []string    `json:"result"`
	References  []Reference `json:"references"`
}

type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type listItemsResponse struct {
	Data []WebsetItem `json:"data"`
}

// ListItems fetches the full item list of one webset job in a single call.
func (c *Client) ListItems(ctx context.Context, websetID string) ([]WebsetItem, error) {
	url := fmt.Sprintf("%s/websets/v0/websets/%s/items?expand=enrichments", c.baseURL, websetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webset items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("webset items request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var listResp listItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode webset items: %w", err)
	}
	return listResp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
