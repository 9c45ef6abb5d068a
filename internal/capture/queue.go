package capture

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a ProcessingTask. Transitions are
// PENDING -> IN_PROGRESS -> COMPLETED|FAILED, and PENDING -> SKIPPED. A
// trigger in the schema rejects anything else.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskSkipped    TaskStatus = "SKIPPED"
)

// Terminal reports whether no further transition is possible.
func (t TaskStatus) Terminal() bool {
	return t == TaskCompleted || t == TaskFailed || t == TaskSkipped
}

// ProcessingTask is one unit of projection work for one sink.
type ProcessingTask struct {
	ID           string     `json:"id"`
	AnalysisID   string     `json:"analysis_id"`
	SinkType     SinkType   `json:"sink_type"`
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ClaimFilter narrows ClaimNext. Zero fields match everything.
type ClaimFilter struct {
	SinkType   SinkType
	AnalysisID string
}

// StaleMessage prefixes the error of tasks failed by RecoverStale.
const StaleMessage = "stale: no outcome recorded"

const taskColumns = "id, analysis_id, sink_type, status, created_at, started_at, completed_at, error_message"

func (s *Store) insertTasks(ctx context.Context, tx *sql.Tx, analysisID string, sinks []SinkType, now string) (int, error) {
	seen := map[SinkType]bool{}
	n := 0
	for _, sink := range sinks {
		if sink == "" || seen[sink] {
			continue
		}
		seen[sink] = true
		if _, err := s.execHook(ctx, tx,
			`INSERT INTO processing_tasks (id, analysis_id, sink_type, status, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			newID(), analysisID, string(sink), string(TaskPending), now,
		); err != nil {
			return n, fmt.Errorf("insert %s task: %w", sink, err)
		}
		n++
	}
	return n, nil
}

// ClaimNext moves the oldest matching PENDING task to IN_PROGRESS and
// returns it. The claim is a single UPDATE, so two callers never get the
// same task. The owning analysis becomes PROCESSING unless archived.
func (s *Store) ClaimNext(ctx context.Context, f ClaimFilter) (*ProcessingTask, bool, error) {
	now := formatTime(timeNow())

	inner := "SELECT seq FROM processing_tasks WHERE status = 'PENDING'"
	args := []any{now}
	if f.SinkType != "" {
		inner += " AND sink_type = ?"
		args = append(args, string(f.SinkType))
	}
	if f.AnalysisID != "" {
		inner += " AND analysis_id = ?"
		args = append(args, f.AnalysisID)
	}
	inner += " ORDER BY seq LIMIT 1"

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tasks, err := s.queryTasks(ctx, tx,
		"UPDATE processing_tasks SET status = 'IN_PROGRESS', started_at = ? WHERE seq = ("+inner+") AND status = 'PENDING' RETURNING "+taskColumns,
		args...)
	if err != nil {
		return nil, false, fmt.Errorf("claim: %w", err)
	}
	if len(tasks) == 0 {
		return nil, false, nil
	}
	task := tasks[0]

	if _, err := s.execHook(ctx, tx,
		"UPDATE analyses SET status = ?, updated_at = ? WHERE id = ? AND status <> ?",
		string(StatusProcessing), now, task.AnalysisID, string(StatusArchived),
	); err != nil {
		return nil, false, fmt.Errorf("claim: mark analysis: %w", err)
	}

	if err := s.commitHook(tx); err != nil {
		return nil, false, fmt.Errorf("claim: commit: %w", err)
	}
	return &task, true, nil
}

// Complete records success for an IN_PROGRESS task. It reports false when
// the task does not exist or is not IN_PROGRESS.
func (s *Store) Complete(ctx context.Context, taskID string) (bool, error) {
	return s.finish(ctx, taskID, TaskCompleted, "")
}

// Fail records failure with message for an IN_PROGRESS task. It reports
// false when the task does not exist or is not IN_PROGRESS.
func (s *Store) Fail(ctx context.Context, taskID, message string) (bool, error) {
	return s.finish(ctx, taskID, TaskFailed, message)
}

func (s *Store) finish(ctx context.Context, taskID string, status TaskStatus, message string) (bool, error) {
	now := formatTime(timeNow())

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return false, fmt.Errorf("finish task %s: begin tx: %w", taskID, err)
	}
	defer func() { _ = tx.Rollback() }()

	tasks, err := s.queryTasks(ctx, tx,
		`UPDATE processing_tasks SET status = ?, completed_at = ?, error_message = ?
		 WHERE id = ? AND status = 'IN_PROGRESS'
		 RETURNING `+taskColumns,
		string(status), now, nullableString(message), taskID)
	if err != nil {
		return false, fmt.Errorf("finish task %s: %w", taskID, err)
	}
	if len(tasks) == 0 {
		return false, nil
	}
	if err := s.recomputeStatus(ctx, tx, tasks[0].AnalysisID, now); err != nil {
		return false, fmt.Errorf("finish task %s: %w", taskID, err)
	}
	if err := s.commitHook(tx); err != nil {
		return false, fmt.Errorf("finish task %s: commit: %w", taskID, err)
	}
	return true, nil
}

// recomputeStatus derives the analysis status from its tasks once none
// are outstanding: COMPLETED when the newest task of every sink completed
// (or was skipped), FAILED otherwise. Archived analyses are left alone.
func (s *Store) recomputeStatus(ctx context.Context, tx *sql.Tx, analysisID, now string) error {
	open, err := s.queryInt(ctx, tx,
		"SELECT COUNT(*) FROM processing_tasks WHERE analysis_id = ? AND status IN ('PENDING', 'IN_PROGRESS')",
		analysisID)
	if err != nil {
		return fmt.Errorf("count open tasks: %w", err)
	}
	if open > 0 {
		return nil
	}

	failed, err := s.queryInt(ctx, tx,
		`SELECT COUNT(*) FROM processing_tasks p
		 WHERE p.analysis_id = ?
		   AND p.seq = (SELECT MAX(q.seq) FROM processing_tasks q
		                WHERE q.analysis_id = p.analysis_id AND q.sink_type = p.sink_type)
		   AND p.status NOT IN ('COMPLETED', 'SKIPPED')`,
		analysisID)
	if err != nil {
		return fmt.Errorf("count failed tasks: %w", err)
	}

	status := StatusCompleted
	if failed > 0 {
		status = StatusFailed
	}
	if _, err := s.execHook(ctx, tx,
		"UPDATE analyses SET status = ?, updated_at = ? WHERE id = ? AND status <> ?",
		string(status), now, analysisID, string(StatusArchived),
	); err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	return nil
}

// Reprocess queues one new PENDING task per sink for an existing analysis,
// whatever its task history. It returns the number of tasks queued, which
// is zero when the analysis does not exist.
func (s *Store) Reprocess(ctx context.Context, analysisID string, sinks []SinkType) (int, error) {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return 0, fmt.Errorf("reprocess %s: begin tx: %w", analysisID, err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := s.queryInt(ctx, tx, "SELECT COUNT(*) FROM analyses WHERE id = ?", analysisID)
	if err != nil {
		return 0, fmt.Errorf("reprocess %s: %w", analysisID, err)
	}
	if exists == 0 {
		return 0, nil
	}

	n, err := s.insertTasks(ctx, tx, analysisID, sinks, formatTime(timeNow()))
	if err != nil {
		return 0, fmt.Errorf("reprocess %s: %w", analysisID, err)
	}
	if err := s.commitHook(tx); err != nil {
		return 0, fmt.Errorf("reprocess %s: commit: %w", analysisID, err)
	}
	return n, nil
}

// TaskStatus returns the tasks of an analysis in creation order.
func (s *Store) TaskStatus(ctx context.Context, analysisID string) ([]ProcessingTask, error) {
	tasks, err := s.queryTasks(ctx, s.db,
		"SELECT "+taskColumns+" FROM processing_tasks WHERE analysis_id = ? ORDER BY seq", analysisID)
	if err != nil {
		return nil, fmt.Errorf("task status %s: %w", analysisID, err)
	}
	return tasks, nil
}

// RecoverStale fails IN_PROGRESS tasks started before now-olderThan. Such
// tasks belong to a worker that died mid-write; reprocessing re-queues
// them.
func (s *Store) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := timeNow()
	cutoff := formatTime(now.Add(-olderThan))
	stamp := formatTime(now)

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover stale: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msg := fmt.Sprintf("%s for %s", StaleMessage, olderThan)
	tasks, err := s.queryTasks(ctx, tx,
		`UPDATE processing_tasks SET status = 'FAILED', completed_at = ?, error_message = ?
		 WHERE status = 'IN_PROGRESS' AND started_at < ?
		 RETURNING `+taskColumns,
		stamp, msg, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recover stale: %w", err)
	}

	done := map[string]bool{}
	for _, t := range tasks {
		if done[t.AnalysisID] {
			continue
		}
		done[t.AnalysisID] = true
		if err := s.recomputeStatus(ctx, tx, t.AnalysisID, stamp); err != nil {
			return 0, fmt.Errorf("recover stale: %w", err)
		}
	}
	if err := s.commitHook(tx); err != nil {
		return 0, fmt.Errorf("recover stale: commit: %w", err)
	}
	return len(tasks), nil
}

func (s *Store) queryTasks(ctx context.Context, db queryer, query string, args ...any) ([]ProcessingTask, error) {
	rows, err := s.queryHook(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []ProcessingTask{}
	for rows.Next() {
		var (
			t                              ProcessingTask
			sink, status, createdAt        string
			startedAt, completedAt, errMsg sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.AnalysisID, &sink, &status, &createdAt, &startedAt, &completedAt, &errMsg); err != nil {
			return nil, err
		}
		t.SinkType = SinkType(sink)
		t.Status = TaskStatus(status)
		t.ErrorMessage = errMsg.String
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if t.StartedAt, err = parseOptionalTime(startedAt); err != nil {
			return nil, err
		}
		if t.CompletedAt, err = parseOptionalTime(completedAt); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func parseOptionalTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
