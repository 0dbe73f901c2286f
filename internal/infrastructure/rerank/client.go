package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/resilience"
)

// Client calls a cross-encoder served behind a Cohere-compatible
// /v1/rerank endpoint (Cohere, Jina, TEI, Infinity).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns at most topN documents ordered by relevance score.
func (c *Client) Rerank(ctx context.Context, query string, docs []domain.Benefit, topN int) ([]domain.Benefit, error) {
	if len(docs) == 0 || topN <= 0 {
		return []domain.Benefit{}, nil
	}
	topN = min(topN, len(docs))

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
		if strings.TrimSpace(texts[i]) == "" {
			texts[i] = doc.DocumentText()
		}
	}
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: texts, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var resp rerankResponse
	err = c.executor.Execute(ctx, "rerank", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("rerank request: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("rerank", "rerank", httpResp)
		}
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("rerank", err, resilience.ClassifyHTTP)
	}

	results := resp.Results
	sort.SliceStable(results, func(i, j int) bool { return results[i].RelevanceScore > results[j].RelevanceScore })

	out := make([]domain.Benefit, 0, topN)
	seen := make(map[int]struct{}, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("rerank: result index %d out of range", r.Index)
		}
		if _, ok := seen[r.Index]; ok {
			continue
		}
		seen[r.Index] = struct{}{}
		out = append(out, docs[r.Index])
		if len(out) == topN {
			break
		}
	}
	return out, nil
}
