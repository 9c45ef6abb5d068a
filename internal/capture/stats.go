package capture

import (
	"context"
	"fmt"
)

// ThreadCount is one entry of the busiest-threads list.
type ThreadCount struct {
	ThreadID string `json:"thread_id"`
	Count    int    `json:"count"`
}

// Stats holds aggregate capture and queue statistics.
type Stats struct {
	TotalAnalyses int                             `json:"total_analyses"`
	ByStatus      map[Status]int                  `json:"by_status"`
	TopThreads    []ThreadCount                   `json:"top_threads"`
	Tasks         map[SinkType]map[TaskStatus]int `json:"tasks"`
}

// Stats returns totals, a per-status count, the topThreads busiest threads
// and a per-sink task status histogram.
func (s *Store) Stats(ctx context.Context, topThreads int) (*Stats, error) {
	if topThreads <= 0 {
		topThreads = 10
	}
	stats := &Stats{
		ByStatus:   map[Status]int{},
		TopThreads: []ThreadCount{},
		Tasks:      map[SinkType]map[TaskStatus]int{},
	}

	total, err := s.queryInt(ctx, s.db, "SELECT COUNT(*) FROM analyses")
	if err != nil {
		return nil, fmt.Errorf("stats: total: %w", err)
	}
	stats.TotalAnalyses = total

	rows, err := s.queryHook(ctx, s.db, "SELECT status, COUNT(*) FROM analyses GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("stats: by status: %w", err)
	}
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("stats: by status: %w", err)
		}
		stats.ByStatus[Status(st)] = n
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: by status: %w", err)
	}

	rows, err = s.queryHook(ctx, s.db,
		"SELECT thread_id, COUNT(*) AS n FROM analyses GROUP BY thread_id ORDER BY n DESC, thread_id LIMIT ?",
		topThreads)
	if err != nil {
		return nil, fmt.Errorf("stats: threads: %w", err)
	}
	for rows.Next() {
		var tc ThreadCount
		if err := rows.Scan(&tc.ThreadID, &tc.Count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("stats: threads: %w", err)
		}
		stats.TopThreads = append(stats.TopThreads, tc)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: threads: %w", err)
	}

	rows, err = s.queryHook(ctx, s.db,
		"SELECT sink_type, status, COUNT(*) FROM processing_tasks GROUP BY sink_type, status")
	if err != nil {
		return nil, fmt.Errorf("stats: tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			sink, st string
			n        int
		)
		if err := rows.Scan(&sink, &st, &n); err != nil {
			return nil, fmt.Errorf("stats: tasks: %w", err)
		}
		if stats.Tasks[SinkType(sink)] == nil {
			stats.Tasks[SinkType(sink)] = map[TaskStatus]int{}
		}
		stats.Tasks[SinkType(sink)][TaskStatus(st)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: tasks: %w", err)
	}
	return stats, nil
}
