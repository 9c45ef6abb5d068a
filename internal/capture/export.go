package capture

import (
	"context"
	"fmt"
)

// ExportVersion is written into every ExportData.
const ExportVersion = "1"

// ExportData is a serializable dump of analyses and their tasks.
type ExportData struct {
	Version    string           `json:"version"`
	ExportedAt string           `json:"exported_at"`
	Analyses   []Analysis       `json:"analyses"`
	Tasks      []ProcessingTask `json:"tasks"`
}

// ImportResult holds counts of imported records.
type ImportResult struct {
	AnalysesImported int `json:"analyses_imported"`
	AnalysesSkipped  int `json:"analyses_skipped"`
	TasksQueued      int `json:"tasks_queued"`
}

// Export returns the analyses matching opts with their task history.
func (s *Store) Export(ctx context.Context, opts SearchOptions) (*ExportData, error) {
	analyses, err := s.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: formatTime(timeNow()),
		Analyses:   analyses,
		Tasks:      []ProcessingTask{},
	}
	for _, a := range analyses {
		tasks, err := s.TaskStatus(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		data.Tasks = append(data.Tasks, tasks...)
	}
	return data, nil
}

// Import loads exported analyses, keeping their ids and timestamps. Ids
// already present are skipped. Every newly imported analysis gets one
// PENDING task per sink; task history from the dump is not replayed.
func (s *Store) Import(ctx context.Context, data *ExportData, sinks []SinkType) (*ImportResult, error) {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return nil, fmt.Errorf("import: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &ImportResult{}
	now := formatTime(timeNow())

	for _, a := range data.Analyses {
		if a.ID == "" || a.ThreadID == "" || a.TaskName == "" {
			return nil, fmt.Errorf("%w: import analysis %q: id, thread_id and task_name are required", ErrInvalidParams, a.ID)
		}
		status := StatusCreated
		if a.Status == StatusArchived {
			status = StatusArchived
		}
		created, updated := now, now
		if !a.CreatedAt.IsZero() {
			created = formatTime(a.CreatedAt)
		}
		if !a.UpdatedAt.IsZero() {
			updated = formatTime(a.UpdatedAt)
		}

		res, err := s.execHook(ctx, tx,
			`INSERT OR IGNORE INTO analyses (id, thread_id, session_id, process_instance_id, task_name, status,
			                                 source_service, input_data, output_data, raw_response, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.ThreadID, nullableString(a.SessionID), nullableString(a.ProcessInstanceID), a.TaskName,
			string(status), a.SourceService, a.InputData.JSON(), nullableValue(a.OutputData),
			nullableString(truncateField(a.RawResponse, s.cfg.MaxFieldLength)), created, updated,
		)
		if err != nil {
			return nil, fmt.Errorf("import analysis %s: %w", a.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			result.AnalysesSkipped++
			continue
		}
		result.AnalysesImported++

		if err := s.insertTags(ctx, tx, a.ID, a.Tags); err != nil {
			return nil, fmt.Errorf("import analysis %s: %w", a.ID, err)
		}
		if status == StatusArchived {
			continue
		}
		n, err := s.insertTasks(ctx, tx, a.ID, sinks, now)
		if err != nil {
			return nil, fmt.Errorf("import analysis %s: %w", a.ID, err)
		}
		result.TasksQueued += n
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("import: commit: %w", err)
	}
	return result, nil
}
