package store

import (
	"context"
	"fmt"
)

// CreateInstance inserts an instance record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) CreateInstance(ctx context.Context, inst Instance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (id, process, definition, digest, created_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inst.ID,
		inst.Process,
		inst.Definition,
		inst.Digest,
		inst.CreatedSeq,
	)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	return nil
}

// WriteSnapshot appends a snapshot for an existing instance.
// Uses ON CONFLICT DO NOTHING for idempotency on (instance_id, seq).
//
// Note: The instance referenced by InstanceID must exist (foreign key constraint).
func (s *Store) WriteSnapshot(ctx context.Context, snap Snapshot) error {
	attrs, err := marshalAttributes(snap.Attributes)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (instance_id, seq, operation, state, attributes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		snap.InstanceID,
		snap.Seq,
		snap.Operation,
		snap.State,
		attrs,
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
