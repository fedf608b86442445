package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rdialog/internal/ir"
)

// ErrPassNotFound is returned by ReadPass for unknown pass ids.
var ErrPassNotFound = errors.New("pass not found")

const passColumns = `id, dialog, graph_hash, seq, trigger_kind, trigger_target, values_hash,
	status, error, failed_provider, computes, engine_version, ir_version`

// ReadPass loads one pass with its updates and skips.
func (s *Store) ReadPass(ctx context.Context, id string) (PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ?`, id)
	p, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PassRecord{}, fmt.Errorf("read pass %s: %w", id, ErrPassNotFound)
	}
	if err != nil {
		return PassRecord{}, fmt.Errorf("read pass %s: %w", id, err)
	}

	if p.Updates, err = s.readUpdates(ctx, id); err != nil {
		return PassRecord{}, err
	}
	if p.Skips, err = s.readSkips(ctx, id); err != nil {
		return PassRecord{}, err
	}
	return p, nil
}

// ListPasses returns the most recent passes of a dialog in seq order,
// without their updates and skips. An empty dialog lists every dialog.
// A limit <= 0 means no limit.
func (s *Store) ListPasses(ctx context.Context, dialog string, limit int) ([]PassRecord, error) {
	q := Where(map[string]string{ColDialog: dialog})
	q.Limit = limit
	passes, err := s.QueryPasses(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	return passes, nil
}

// PassesSkipping returns the ids of passes in which a provider was skipped
// or failed, in seq order.
func (s *Store) PassesSkipping(ctx context.Context, providerID string) ([]string, error) {
	passes, err := s.QueryPasses(ctx, Query{Filter: Skipped{Provider: providerID}})
	if err != nil {
		return nil, fmt.Errorf("passes skipping %s: %w", providerID, err)
	}
	ids := make([]string, len(passes))
	for i, p := range passes {
		ids[i] = p.ID
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (PassRecord, error) {
	var p PassRecord
	var kind string
	err := row.Scan(
		&p.ID,
		&p.Dialog,
		&p.GraphHash,
		&p.Seq,
		&kind,
		&p.Trigger.Target,
		&p.ValuesHash,
		&p.Status,
		&p.Error,
		&p.FailedProvider,
		&p.Computes,
		&p.EngineVersion,
		&p.IRVersion,
	)
	if err != nil {
		return PassRecord{}, err
	}
	p.Trigger.Kind = ir.TriggerKind(kind)
	return p, nil
}

func (s *Store) readUpdates(ctx context.Context, passID string) ([]ir.UpdateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM updates WHERE pass_id = ? ORDER BY position ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("read updates %s: %w", passID, err)
	}
	defer rows.Close()

	out := []ir.UpdateResult{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("read updates %s: %w", passID, err)
		}
		u, err := unmarshalUpdate(payload)
		if err != nil {
			return nil, fmt.Errorf("read updates %s: %w", passID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) readSkips(ctx context.Context, passID string) ([]SkipRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, cause, reason, failed FROM skips
		WHERE pass_id = ? ORDER BY position ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("read skips %s: %w", passID, err)
	}
	defer rows.Close()

	out := []SkipRecord{}
	for rows.Next() {
		var sk SkipRecord
		if err := rows.Scan(&sk.ProviderID, &sk.Cause, &sk.Reason, &sk.Failed); err != nil {
			return nil, fmt.Errorf("read skips %s: %w", passID, err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}
