package domain

type QueryStage string

const (
	StageRaw       QueryStage = "raw"
	StageExtracted QueryStage = "extracted"
	StageSanitized QueryStage = "sanitized"
	StageValidated QueryStage = "validated"
	StageExecuted  QueryStage = "executed"
	StageRejected  QueryStage = "rejected"
)

// StructuredQuery is an attribute filter over the benefits relation at some
// point of its lifecycle. Text is the literal form used for logs and
// diagnostics; Statement and Args are what the relational store executes.
type StructuredQuery struct {
	Stage     QueryStage `json:"stage"`
	Raw       string     `json:"-"`
	Text      string     `json:"text"`
	Statement string     `json:"-"`
	Args      []any      `json:"-"`

	Attempts int    `json:"attempts"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

func (q StructuredQuery) IsExecutable() bool {
	return (q.Stage == StageValidated || q.Stage == StageExecuted) && q.Statement != ""
}
