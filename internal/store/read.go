package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// GetInstance returns one instance, or ErrNotFound.
func (s *Store) GetInstance(ctx context.Context, id string) (Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, process, definition, digest, created_seq
		FROM instances
		WHERE id = ?
	`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

// ListInstances returns all instances, optionally restricted to one
// process, ordered by creation seq.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListInstances(ctx context.Context, process string) ([]Instance, error) {
	query := `
		SELECT id, process, definition, digest, created_seq
		FROM instances
	`
	var args []any
	if process != "" {
		query += ` WHERE process = ?`
		args = append(args, process)
	}
	query += ` ORDER BY created_seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	instances := []Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

// ActiveInstances returns instances whose latest snapshot is not the
// completed state complete, ordered by creation seq.
func (s *Store) ActiveInstances(ctx context.Context, complete string) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.process, i.definition, i.digest, i.created_seq
		FROM instances i
		JOIN snapshots s ON s.instance_id = i.id
		WHERE s.seq = (SELECT MAX(seq) FROM snapshots WHERE instance_id = i.id)
		  AND s.state != ?
		ORDER BY i.created_seq ASC, i.id COLLATE BINARY ASC
	`, complete)
	if err != nil {
		return nil, fmt.Errorf("query active instances: %w", err)
	}
	defer rows.Close()

	instances := []Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active instances: %w", err)
	}
	return instances, nil
}

// LatestSnapshot returns the snapshot with the highest seq, or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, instanceID string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance_id, seq, operation, state, attributes
		FROM snapshots
		WHERE instance_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, instanceID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot of %s: %w", instanceID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

// Snapshots returns the history of an instance ordered by seq.
//
// Returns an empty slice (not nil) if no snapshots exist.
func (s *Store) Snapshots(ctx context.Context, instanceID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, seq, operation, state, attributes
		FROM snapshots
		WHERE instance_id = ?
		ORDER BY seq ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// MaxSeq returns the highest seq used by any record, or 0 for an empty
// store. The engine resumes its clock from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM snapshots), 0),
			COALESCE((SELECT MAX(created_seq) FROM instances), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

func scanInstance(row rowScanner) (Instance, error) {
	var inst Instance
	err := row.Scan(&inst.ID, &inst.Process, &inst.Definition, &inst.Digest, &inst.CreatedSeq)
	return inst, err
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		snap  Snapshot
		attrs string
	)
	if err := row.Scan(&snap.InstanceID, &snap.Seq, &snap.Operation, &snap.State, &attrs); err != nil {
		return Snapshot{}, err
	}
	parsed, err := unmarshalAttributes(attrs)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Attributes = parsed
	return snap, nil
}
