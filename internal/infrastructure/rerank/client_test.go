package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

func TestRerankOrdersByScore(t *testing.T) {
	var got rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rerank" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.2},{"index":2,"relevance_score":0.9}]}`))
	}))
	defer server.Close()

	docs := []domain.Benefit{
		{ServiceID: "a", Content: "alpha"},
		{ServiceID: "b", Title: "beta"},
		{ServiceID: "c", Content: "gamma"},
	}
	out, err := New(server.URL, "secret", "bge-reranker", nil).Rerank(context.Background(), "q", docs, 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 2 || out[0].ServiceID != "c" || out[1].ServiceID != "a" {
		t.Fatalf("unexpected order: %+v", out)
	}
	if got.TopN != 2 || got.Model != "bge-reranker" || got.Documents[1] == "" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":7,"relevance_score":1}]}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "", "", nil).Rerank(context.Background(), "q", []domain.Benefit{{ServiceID: "a"}}, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRerankMarksUnavailableTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "", "", nil).Rerank(context.Background(), "q", []domain.Benefit{{ServiceID: "a"}}, 1)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
