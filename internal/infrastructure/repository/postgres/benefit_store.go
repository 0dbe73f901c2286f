package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

const defaultRowLimit = 200

// BenefitStore runs validated structured queries. Statements are produced by
// the sqlfilter renderer and always read from the benefits relation.
type BenefitStore struct {
	db       *sql.DB
	rowLimit int
}

func NewBenefitStore(db *sql.DB, rowLimit int) *BenefitStore {
	if rowLimit <= 0 {
		rowLimit = defaultRowLimit
	}
	return &BenefitStore{db: db, rowLimit: rowLimit}
}

// DryRun asks the planner for the statement without executing it.
func (s *BenefitStore) DryRun(ctx context.Context, query domain.StructuredQuery) error {
	statement := strings.TrimSpace(query.Statement)
	if statement == "" {
		return errors.New("dry run: empty statement")
	}
	rows, err := s.db.QueryContext(ctx, "EXPLAIN "+statement, query.Args...)
	if err != nil {
		return fmt.Errorf("explain structured query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("explain structured query: %w", err)
	}
	return nil
}

// Execute returns distinct service ids in result order, capped at the row limit.
func (s *BenefitStore) Execute(ctx context.Context, query domain.StructuredQuery) ([]string, error) {
	if !query.IsExecutable() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "execute structured query", fmt.Errorf("stage %q is not executable", query.Stage))
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statement := fmt.Sprintf("SELECT q.service_id FROM (%s) AS q LIMIT %d", query.Statement, s.rowLimit)
	rows, err := tx.QueryContext(ctx, statement, query.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute structured query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		if !id.Valid || id.String == "" {
			continue
		}
		if _, ok := seen[id.String]; ok {
			continue
		}
		seen[id.String] = struct{}{}
		ids = append(ids, id.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate structured query: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit read tx: %w", err)
	}
	return ids, nil
}
