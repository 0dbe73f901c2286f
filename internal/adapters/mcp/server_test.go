package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

type searcherFake struct {
	got domain.SearchRequest
	err error
}

func (f *searcherFake) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	result := domain.EmptySearchResult()
	result.Ranked = []string{"svc-1"}
	result.Documents["1"] = domain.Benefit{ServiceID: "svc-1", Title: "청년 월세"}
	return result, nil
}

type readerFake struct{}

func (readerFake) GetByServiceID(_ context.Context, serviceID string) (*domain.Benefit, error) {
	if serviceID != "svc-1" {
		return nil, domain.WrapError(domain.ErrBenefitNotFound, "get", errors.New(serviceID))
	}
	return &domain.Benefit{ServiceID: "svc-1", Title: "청년 월세"}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("expected tool content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchToolReturnsRankedJSON(t *testing.T) {
	searcher := &searcherFake{}
	tools := NewTools(searcher, readerFake{}, nil)

	result, err := tools.Search(context.Background(), callRequest(toolSearch, map[string]any{
		"question": "월세 지원",
		"user_id":  "u-7",
	}))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if searcher.got.UserID != "u-7" || searcher.got.Question != "월세 지원" {
		t.Fatalf("unexpected search request: %+v", searcher.got)
	}

	var body domain.SearchResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Documents["1"].ServiceID != "svc-1" {
		t.Fatalf("unexpected documents: %+v", body.Documents)
	}
}

func TestSearchToolRequiresQuestion(t *testing.T) {
	tools := NewTools(&searcherFake{}, readerFake{}, nil)
	result, err := tools.Search(context.Background(), callRequest(toolSearch, map[string]any{}))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing question")
	}
}

func TestSearchToolReportsFailureAsToolError(t *testing.T) {
	tools := NewTools(&searcherFake{err: errors.New("pipeline down")}, readerFake{}, nil)
	result, err := tools.Search(context.Background(), callRequest(toolSearch, map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestGetToolNotFound(t *testing.T) {
	tools := NewTools(&searcherFake{}, readerFake{}, nil)
	result, err := tools.Get(context.Background(), callRequest(toolGet, map[string]any{"service_id": "nope"}))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for unknown service id")
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(NewTools(&searcherFake{}, readerFake{}, nil))
	tools := s.ListTools()
	for _, name := range []string{toolSearch, toolGet} {
		if _, ok := tools[name]; !ok {
			t.Fatalf("expected tool %q to be registered", name)
		}
	}
}
