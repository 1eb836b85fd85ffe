package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/pkg/utils"
	"golang.org/x/time/rate"
)

// ZeroEntropyClient calls the ZeroEntropy rerank endpoint.
type ZeroEntropyClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type zeRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type zeRerankResponse struct {
	Results []Ranked `json:"results"`
}

// NewZeroEntropyClient creates a client from cfg. The API key is read from the environment
// variable named by cfg.APIKeyEnv.
func NewZeroEntropyClient(cfg config.RerankerConfig) (*ZeroEntropyClient, error) {
	key := config.APIKey(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.APIKeyEnv)
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ZeroEntropyClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     key,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    utils.NewRateLimiter(cfg.RequestsPerSecond),
	}, nil
}

// Rerank posts query and documents to {base}/models/rerank and returns the results by
// descending relevance score. It satisfies RerankFunc.
func (c *ZeroEntropyClient) Rerank(ctx context.Context, query string, documents []string) ([]Ranked, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rerank rate limit: %w", err)
		}
	}
	body, err := json.Marshal(zeRerankRequest{Model: c.model, Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out zeRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	sort.SliceStable(out.Results, func(i, j int) bool { return out.Results[i].Score > out.Results[j].Score })
	return out.Results, nil
}
