package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/junyuhe/scholarbot/backend/internal/config"
	"github.com/junyuhe/scholarbot/backend/internal/model/evidence"
	"github.com/junyuhe/scholarbot/backend/internal/quota"
	"github.com/junyuhe/scholarbot/backend/internal/retry"
)

// statusError carries the provider's HTTP status so the retry policy can
// separate transient failures from permanent ones.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search provider returned http %d", e.status)
}

func (e *statusError) transient() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// Gateway wraps the external web search provider. Every logical call consumes
// one unit of search quota; retries of the same call do not.
type Gateway struct {
	cfg    config.SearchConfig
	guard  *quota.Guard
	policy retry.Policy
	client *http.Client
}

// NewGateway constructs the gateway with the shared quota guard.
func NewGateway(cfg config.SearchConfig, guard *quota.Guard) *Gateway {
	return &Gateway{
		cfg:    cfg,
		guard:  guard,
		policy: retry.Default,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	APIKey     string `json:"api_key"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search issues the query and returns normalized evidence items in provider
// rank order, capped at the configured maximum. A denied quota reservation
// fails immediately with quota.ErrExhausted and makes no network attempt.
func (g *Gateway) Search(ctx context.Context, query string) ([]evidence.Item, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, errors.New("search: API key is missing")
	}

	if !g.guard.TryReserve(quota.ProviderSearch) {
		return nil, fmt.Errorf("search: %w", quota.ErrExhausted)
	}

	payload, err := json.Marshal(searchRequest{
		Query:      query,
		APIKey:     g.cfg.APIKey,
		MaxResults: g.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	var items []evidence.Item
	err = g.policy.Do(ctx, isTransient, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()

		result, err := g.attempt(attemptCtx, payload)
		if err != nil {
			return err
		}
		items = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	log.Printf("[search] query answered with %d results", len(items))
	return items, nil
}

func (g *Gateway) attempt(ctx context.Context, payload []byte) ([]evidence.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return g.normalize(decoded), nil
}

// normalize converts the provider's result shape into evidence items. Results
// missing a title or snippet are dropped, not defaulted. Rank is the 1-based
// position in the provider's response, so it survives those drops.
func (g *Gateway) normalize(decoded searchResponse) []evidence.Item {
	items := make([]evidence.Item, 0, len(decoded.Results))
	for i, r := range decoded.Results {
		title := cleanText(r.Title)
		snippet := cleanText(r.Snippet)
		if title == "" || snippet == "" || r.URL == "" {
			continue
		}
		items = append(items, evidence.Item{
			Title:   title,
			URL:     r.URL,
			Snippet: snippet,
			Rank:    i + 1,
		})
		if g.cfg.MaxResults > 0 && len(items) >= g.cfg.MaxResults {
			break
		}
	}
	return items
}

// isTransient classifies an attempt failure for the retry policy. Timeouts
// and 429/5xx responses are retryable; everything else is permanent.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

var htmlTagPattern = regexp.MustCompile(`<[^<]+?>`)

// cleanText collapses whitespace and strips stray HTML tags from provider
// snippets.
func cleanText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
