package domain

type Provenance string

const (
	ProvenanceVector     Provenance = "vector"
	ProvenanceStructured Provenance = "structured"
)

// RetrievalResult is the ordered identifier list produced by one branch.
type RetrievalResult struct {
	Provenance Provenance
	IDs        []string

	// Abstraction is the step-back question used by the vector branch.
	Abstraction string
	// Query is the structured query run by the structured branch.
	Query *StructuredQuery
	// Degraded is set when the branch failed and was replaced by an empty result.
	Degraded bool
}

func EmptyResult(provenance Provenance) RetrievalResult {
	return RetrievalResult{Provenance: provenance, IDs: []string{}, Degraded: true}
}

// ReconciledIDs classifies identifiers by the branches that produced them.
// The three lists are pairwise disjoint.
type ReconciledIDs struct {
	Common         []string `json:"common_ids"`
	VectorOnly     []string `json:"vector_only_ids"`
	StructuredOnly []string `json:"sql_only_ids"`
}

func (r ReconciledIDs) IsEmpty() bool {
	return len(r.Common) == 0 && len(r.VectorOnly) == 0 && len(r.StructuredOnly) == 0
}

// Union returns every identifier once: common, then vector-only, then structured-only.
func (r ReconciledIDs) Union() []string {
	out := make([]string, 0, len(r.Common)+len(r.VectorOnly)+len(r.StructuredOnly))
	out = append(out, r.Common...)
	out = append(out, r.VectorOnly...)
	out = append(out, r.StructuredOnly...)
	return out
}
