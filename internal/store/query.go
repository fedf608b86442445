package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/rdialog/internal/ir"
)

// Predicate filters passes. Sealed: only types in this package implement
// it, so the compiler can switch over every case.
//
//   - Equals: column = value
//   - Skipped: the pass skipped or failed a provider
//   - And: all predicates hold
type Predicate interface {
	predicateNode()
}

// Filterable pass columns.
const (
	ColDialog         = "dialog"
	ColStatus         = "status"
	ColTriggerKind    = "trigger_kind"
	ColTriggerTarget  = "trigger_target"
	ColFailedProvider = "failed_provider"
	ColGraphHash      = "graph_hash"
)

var filterColumns = map[string]bool{
	ColDialog:         true,
	ColStatus:         true,
	ColTriggerKind:    true,
	ColTriggerTarget:  true,
	ColFailedProvider: true,
	ColGraphHash:      true,
}

// Equals matches passes whose column holds value.
type Equals struct {
	Column string
	Value  ir.Value
}

func (Equals) predicateNode() {}

// Skipped matches passes with a skip record for Provider.
type Skipped struct {
	Provider string
}

func (Skipped) predicateNode() {}

// And matches passes satisfying every predicate. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Query selects passes. The most recent Limit matches are returned in
// ascending seq order; Limit <= 0 means no limit.
type Query struct {
	Filter Predicate
	Limit  int
}

// Where builds a query from optional equality filters. Empty values are
// ignored, so callers can pass flag values straight through.
func Where(columns map[string]string) Query {
	var preds []Predicate
	for _, col := range []string{ColDialog, ColStatus, ColTriggerKind, ColTriggerTarget, ColFailedProvider, ColGraphHash} {
		if v := columns[col]; v != "" {
			preds = append(preds, Equals{Column: col, Value: ir.String(v)})
		}
	}
	if len(preds) == 0 {
		return Query{}
	}
	return Query{Filter: And{Predicates: preds}}
}

// QueryPasses returns the passes matching q, without their updates and
// skips.
func (s *Store) QueryPasses(ctx context.Context, q Query) ([]PassRecord, error) {
	query, params, err := compileQuery(q)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var out []PassRecord
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("query passes: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	return out, nil
}

// compileQuery converts q to parameterized SQL. Values are never
// interpolated. Every query orders by (seq, id) so results are
// deterministic.
func compileQuery(q Query) (string, []any, error) {
	where, params, err := compilePredicate(q.Filter)
	if err != nil {
		return "", nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	params = append(params, limit)

	query := `SELECT ` + passColumns + ` FROM (
			SELECT ` + passColumns + ` FROM passes
			WHERE ` + where + `
			ORDER BY seq DESC, id DESC COLLATE BINARY
			LIMIT ?
		)
		ORDER BY seq ASC, id ASC COLLATE BINARY`
	return query, params, nil
}

// compilePredicate compiles p to a WHERE fragment. A nil predicate is
// always true.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case Skipped:
		if pred.Provider == "" {
			return "", nil, fmt.Errorf("skipped: provider is required")
		}
		return "EXISTS (SELECT 1 FROM skips k WHERE k.pass_id = passes.id AND k.provider_id = ?)",
			[]any{pred.Provider}, nil
	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, len(pred.Predicates))
		var params []any
		for i, sub := range pred.Predicates {
			sql, subParams, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts[i] = "(" + sql + ")"
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	if !filterColumns[eq.Column] {
		return "", nil, fmt.Errorf("unknown column %q", eq.Column)
	}
	param, err := valueParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", eq.Column, err)
	}
	return eq.Column + " = ?", []any{param}, nil
}

// valueParam converts a scalar value to a SQL parameter.
func valueParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("%s cannot be used as a filter value", ir.KindOf(v))
	}
}
