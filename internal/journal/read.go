package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

const selectRuns = `
	SELECT r.id, r.machine, r.machine_hash, r.initial_state, r.final_state, r.termination,
	       (SELECT COUNT(*) FROM replies p WHERE p.run_id = r.id)
	FROM runs r
`

// Runs returns every run, oldest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, selectRuns+` ORDER BY r.ordinal ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given ID.
func (j *Journal) GetRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, selectRuns+` WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q: %w", id, ErrRunNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (j *Journal) LatestRun(ctx context.Context) (Run, error) {
	row := j.db.QueryRowContext(ctx, selectRuns+` ORDER BY r.ordinal DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// Replies returns the replies of a run in sequence order. An unknown run
// yields an empty slice.
func (j *Journal) Replies(ctx context.Context, runID string) ([]Reply, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, input, from_state, to_state, accepted
		FROM replies
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	replies := []Reply{}
	for rows.Next() {
		var r Reply
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Input, &r.FromState, &r.ToState, &r.Accepted); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return replies, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	err := s.Scan(&run.ID, &run.Machine, &run.MachineHash, &run.InitialState,
		&run.FinalState, &run.Termination, &run.Replies)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}
