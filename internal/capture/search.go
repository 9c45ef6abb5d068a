package capture

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Default result limits.
const (
	DefaultSearchLimit = 100
	DefaultThreadLimit = 50
)

// TagMatch selects how multiple requested tags combine.
type TagMatch string

const (
	// TagMatchAny keeps analyses carrying at least one requested tag.
	TagMatchAny TagMatch = "any"
	// TagMatchAll keeps analyses carrying every requested tag.
	TagMatchAll TagMatch = "all"
)

// SearchOptions holds conjunctive filters. Zero fields do not filter.
type SearchOptions struct {
	ThreadID          string    `json:"thread_id,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	ProcessInstanceID string    `json:"process_instance_id,omitempty"`
	TaskNamePattern   string    `json:"task_name_pattern,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	TagMode           TagMatch  `json:"tag_mode,omitempty"`
	Status            Status    `json:"status,omitempty"`
	SourceService     string    `json:"source_service,omitempty"`
	CreatedAfter      time.Time `json:"created_after,omitempty"`
	CreatedBefore     time.Time `json:"created_before,omitempty"`
	Limit             int       `json:"limit,omitempty"`
}

// Search returns analyses matching every filter in opts, most recent
// first. TaskNamePattern is a plain substring; % and _ have no special
// meaning.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Analysis, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	query := "SELECT " + analysisColumns + " FROM analyses a WHERE 1=1"
	var args []any

	if opts.ThreadID != "" {
		query += " AND a.thread_id = ?"
		args = append(args, opts.ThreadID)
	}
	if opts.SessionID != "" {
		query += " AND a.session_id = ?"
		args = append(args, opts.SessionID)
	}
	if opts.ProcessInstanceID != "" {
		query += " AND a.process_instance_id = ?"
		args = append(args, opts.ProcessInstanceID)
	}
	if opts.TaskNamePattern != "" {
		query += " AND instr(a.task_name, ?) > 0"
		args = append(args, opts.TaskNamePattern)
	}
	if opts.Status != "" {
		query += " AND a.status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.SourceService != "" {
		query += " AND a.source_service = ?"
		args = append(args, opts.SourceService)
	}
	if !opts.CreatedAfter.IsZero() {
		query += " AND a.created_at >= ?"
		args = append(args, formatTime(opts.CreatedAfter))
	}
	if !opts.CreatedBefore.IsZero() {
		query += " AND a.created_at < ?"
		args = append(args, formatTime(opts.CreatedBefore))
	}

	if tags := NormalizeTags(opts.Tags); len(tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
		switch opts.TagMode {
		case TagMatchAll:
			query += " AND (SELECT COUNT(*) FROM analysis_tags t WHERE t.analysis_id = a.id AND t.tag IN (" + placeholders + ")) = ?"
			for _, t := range tags {
				args = append(args, t)
			}
			args = append(args, len(tags))
		case TagMatchAny, "":
			query += " AND EXISTS (SELECT 1 FROM analysis_tags t WHERE t.analysis_id = a.id AND t.tag IN (" + placeholders + "))"
			for _, t := range tags {
				args = append(args, t)
			}
		default:
			return nil, fmt.Errorf("%w: unknown tag mode %q", ErrInvalidParams, opts.TagMode)
		}
	}

	query += " ORDER BY a.rowid DESC LIMIT ?"
	args = append(args, limit)

	results, err := s.queryAnalyses(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// ThreadSummary is a compact view of one thread.
type ThreadSummary struct {
	ThreadID        string    `json:"thread_id"`
	AnalysisCount   int       `json:"analysis_count"`
	FirstCapturedAt time.Time `json:"first_captured_at"`
	LastCapturedAt  time.Time `json:"last_captured_at"`
}

// RecentThreads lists threads ordered by their latest capture.
func (s *Store) RecentThreads(ctx context.Context, limit int) ([]ThreadSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.queryHook(ctx, s.db,
		`SELECT thread_id, COUNT(*), MIN(created_at), MAX(created_at)
		 FROM analyses
		 GROUP BY thread_id
		 ORDER BY MAX(rowid) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []ThreadSummary{}
	for rows.Next() {
		var (
			ts          ThreadSummary
			first, last string
		)
		if err := rows.Scan(&ts.ThreadID, &ts.AnalysisCount, &first, &last); err != nil {
			return nil, err
		}
		if ts.FirstCapturedAt, err = parseTime(first); err != nil {
			return nil, err
		}
		if ts.LastCapturedAt, err = parseTime(last); err != nil {
			return nil, err
		}
		results = append(results, ts)
	}
	return results, rows.Err()
}
