package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/resilience"
)

// Client stores one point per benefit. The point id is derived from the
// service id so re-indexing a benefit overwrites its previous point.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

// New builds a Qdrant REST client. executor may be nil.
func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload domain.Benefit `json:"payload"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload domain.Benefit `json:"payload"`
	Vector  []float32      `json:"vector"`
}

// PointID is the deterministic point id of a benefit.
func PointID(serviceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("benefit:"+serviceID)).String()
}

func (c *Client) Upsert(ctx context.Context, docs []domain.Benefit, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("qdrant upsert: %d documents for %d vectors", len(docs), len(vectors))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.ServiceID) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", errors.New("benefit without service id"))
		}
		if doc.Content == "" {
			doc.Content = doc.DocumentText()
		}
		points = append(points, point{ID: PointID(doc.ServiceID), Vector: vectors[i], Payload: doc})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Benefit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return []domain.Benefit{}, nil
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &resp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Benefit, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Payload.ServiceID == "" {
			continue
		}
		out = append(out, r.Payload)
	}
	return out, nil
}

// FetchByServiceIDs returns stored documents with their vectors in the
// order of serviceIDs. Unknown ids are skipped.
func (c *Client) FetchByServiceIDs(ctx context.Context, serviceIDs []string) ([]domain.Benefit, error) {
	ids := make([]string, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, PointID(id))
		}
	}
	if len(ids) == 0 {
		return []domain.Benefit{}, nil
	}

	reqBody := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &resp, "fetch"); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Benefit, len(resp.Result))
	for _, r := range resp.Result {
		doc := r.Payload
		doc.Vector = r.Vector
		byID[doc.ServiceID] = doc
	}
	out := make([]domain.Benefit, 0, len(byID))
	for _, id := range serviceIDs {
		doc, ok := byID[strings.TrimSpace(id)]
		if !ok {
			continue
		}
		out = append(out, doc)
		delete(byID, doc.ServiceID)
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure_collection")
	var statusErr *resilience.HTTPStatusError
	// 409 when the collection already exists.
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	err = c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	return resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTP)
}
