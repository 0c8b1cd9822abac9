package journal

import (
	"context"
	"fmt"
)

// BeginRun records the start of a run. Writing the same run ID twice is a
// no-op.
func (j *Journal) BeginRun(ctx context.Context, run Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, machine, machine_hash, initial_state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Machine, run.MachineHash, run.InitialState)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// AppendReply records a reply. The run must exist. Rewriting an existing
// (run, seq) pair is a no-op.
func (j *Journal) AppendReply(ctx context.Context, r Reply) error {
	toState := r.ToState
	if !r.Accepted {
		toState = ""
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO replies (run_id, seq, input, from_state, to_state, accepted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, r.RunID, r.Seq, r.Input, r.FromState, toState, r.Accepted)
	if err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	return nil
}

// EndRun records how a run terminated.
func (j *Journal) EndRun(ctx context.Context, runID, finalState, termination string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs SET final_state = ?, termination = ?
		WHERE id = ?
	`, finalState, termination, runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end run %q: %w", runID, ErrRunNotFound)
	}
	return nil
}
