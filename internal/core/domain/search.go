package domain

// SearchRequest is an inbound benefit search.
type SearchRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

type SourceSummary struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ServiceID   string `json:"service_id"`
	Eligibility string `json:"eligibility"`
	Benefits    string `json:"benefits"`
}

// SearchResult is the final ranked set with provenance. Documents is keyed by
// 1-based rank.
type SearchResult struct {
	Documents map[string]Benefit `json:"documents"`
	Ranked    []string           `json:"ranked_ids"`

	CommonIDs         []string `json:"common_ids"`
	VectorOnlyIDs     []string `json:"vector_only_ids"`
	StructuredOnlyIDs []string `json:"sql_only_ids"`

	Sources    []SourceSummary `json:"sources"`
	ServiceIDs []string        `json:"service_ids"`

	StepBackQuestion string   `json:"stepback_question,omitempty"`
	StructuredQuery  string   `json:"structured_query,omitempty"`
	Degraded         bool     `json:"degraded"`
	DegradedBranches []string `json:"degraded_branches,omitempty"`
}

func EmptySearchResult() *SearchResult {
	return &SearchResult{
		Documents:         map[string]Benefit{},
		Ranked:            []string{},
		CommonIDs:         []string{},
		VectorOnlyIDs:     []string{},
		StructuredOnlyIDs: []string{},
		Sources:           []SourceSummary{},
		ServiceIDs:        []string{},
	}
}
