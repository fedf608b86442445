package store

import (
	"context"
	"fmt"
)

// WritePass records a pass with its updates and skips in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same pass
// twice keeps the first record.
func (s *Store) WritePass(ctx context.Context, p PassRecord) error {
	if p.ID == "" {
		return fmt.Errorf("write pass: id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO passes
		(id, dialog, graph_hash, seq, trigger_kind, trigger_target, values_hash,
		 status, error, failed_provider, computes, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		p.ID,
		p.Dialog,
		p.GraphHash,
		p.Seq,
		string(p.Trigger.Kind),
		p.Trigger.Target,
		p.ValuesHash,
		p.Status,
		p.Error,
		p.FailedProvider,
		p.Computes,
		p.EngineVersion,
		p.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	for i, u := range p.Updates {
		payload, err := marshalUpdate(u)
		if err != nil {
			return fmt.Errorf("write pass %s: %w", p.ID, err)
		}
		dest, err := marshalDestination(u.Destination)
		if err != nil {
			return fmt.Errorf("write pass %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO updates (pass_id, position, destination, payload)
			VALUES (?, ?, ?, ?)
		`, p.ID, i, dest, payload); err != nil {
			return fmt.Errorf("write pass %s: update %d: %w", p.ID, i, err)
		}
	}

	for i, sk := range p.Skips {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skips (pass_id, position, provider_id, cause, reason, failed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, i, sk.ProviderID, sk.Cause, sk.Reason, sk.Failed); err != nil {
			return fmt.Errorf("write pass %s: skip %d: %w", p.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass: commit: %w", err)
	}
	return nil
}
