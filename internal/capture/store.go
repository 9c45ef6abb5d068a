// Package capture is the durable record of analysis events and the queue
// of projection tasks derived from them.
//
// Everything lives in one SQLite database. An analysis and the PENDING
// tasks for every enabled sink are written in a single transaction, so a
// captured analysis is never missing its fan-out.
package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/HendryAvila/hoofprint/internal/sqlitedb"
	"github.com/HendryAvila/hoofprint/internal/value"
)

// ─── Errors ──────────────────────────────────────────────────────────────────

var (
	// ErrStorageUnavailable wraps every failure of the database while
	// capturing. Nothing was stored when it is returned.
	ErrStorageUnavailable = errors.New("capture: storage unavailable")

	// ErrInvalidParams is returned for captures missing required fields.
	ErrInvalidParams = errors.New("capture: invalid parameters")
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Status is the lifecycle state of an Analysis.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusArchived   Status = "ARCHIVED"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusCreated, StatusProcessing, StatusCompleted, StatusFailed, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidParams, s)
}

// SinkType names a projection backend. The set is open.
type SinkType string

const (
	SinkSimilarity SinkType = "similarity"
	SinkGraph      SinkType = "graph"
)

// Analysis is one captured task execution.
type Analysis struct {
	ID                string      `json:"id"`
	ThreadID          string      `json:"thread_id"`
	SessionID         string      `json:"session_id,omitempty"`
	ProcessInstanceID string      `json:"process_instance_id,omitempty"`
	TaskName          string      `json:"task_name"`
	Status            Status      `json:"status"`
	Tags              []string    `json:"tags"`
	SourceService     string      `json:"source_service"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	InputData         value.Value `json:"input_data"`
	OutputData        value.Value `json:"output_data"`
	RawResponse       string      `json:"raw_response,omitempty"`
}

// CaptureParams holds the input for Save.
type CaptureParams struct {
	ThreadID          string      `json:"thread_id"`
	TaskName          string      `json:"task_name"`
	InputData         value.Value `json:"input_data"`
	OutputData        value.Value `json:"output_data"`
	RawResponse       string      `json:"raw_response,omitempty"`
	SessionID         string      `json:"session_id,omitempty"`
	ProcessInstanceID string      `json:"process_instance_id,omitempty"`
	Tags              []string    `json:"tags,omitempty"`
	SourceService     string      `json:"source_service"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// DBFile is the database file name inside Config.DataDir.
const DBFile = "hoofprint.db"

// TruncationMarker is appended to fields shortened by MaxFieldLength.
const TruncationMarker = "... [truncated]"

// Config holds capture store configuration.
type Config struct {
	DataDir string
	// MaxFieldLength bounds raw_response in runes. Zero means unlimited.
	MaxFieldLength   int
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the capture store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".hoofprint"),
		MaxFieldLength:   0,
		MaxSearchResults: 1000,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// timeNow and newID are package vars so tests can pin them.
var (
	timeNow = time.Now
	newID   = uuid.NewString
)

// Store is the SQLite-backed capture store and processing queue. It is
// safe for concurrent use.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

// New opens (creating if needed) the database in cfg.DataDir and runs
// migrations.
func New(cfg Config) (*Store, error) {
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = DefaultConfig().MaxSearchResults
	}
	db, err := sqlitedb.Open(cfg.DataDir, DBFile)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("capture: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS analyses (
			id                  TEXT PRIMARY KEY,
			thread_id           TEXT NOT NULL,
			session_id          TEXT,
			process_instance_id TEXT,
			task_name           TEXT NOT NULL,
			status              TEXT NOT NULL DEFAULT 'CREATED',
			source_service      TEXT NOT NULL DEFAULT '',
			input_data          TEXT NOT NULL,
			output_data         TEXT,
			raw_response        TEXT,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_analyses_thread  ON analyses(thread_id);
		CREATE INDEX IF NOT EXISTS idx_analyses_session ON analyses(session_id);
		CREATE INDEX IF NOT EXISTS idx_analyses_status  ON analyses(status);
		CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);

		CREATE TABLE IF NOT EXISTS analysis_tags (
			analysis_id TEXT NOT NULL REFERENCES analyses(id),
			tag         TEXT NOT NULL,
			PRIMARY KEY (analysis_id, tag)
		);

		CREATE INDEX IF NOT EXISTS idx_analysis_tags_tag ON analysis_tags(tag);

		CREATE TABLE IF NOT EXISTS processing_tasks (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT    NOT NULL UNIQUE,
			analysis_id   TEXT    NOT NULL REFERENCES analyses(id),
			sink_type     TEXT    NOT NULL,
			status        TEXT    NOT NULL DEFAULT 'PENDING',
			created_at    TEXT    NOT NULL,
			started_at    TEXT,
			completed_at  TEXT,
			error_message TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_claim    ON processing_tasks(status, sink_type, seq);
		CREATE INDEX IF NOT EXISTS idx_tasks_analysis ON processing_tasks(analysis_id, seq);

		CREATE TRIGGER IF NOT EXISTS analyses_immutable
		BEFORE UPDATE OF id, input_data, created_at ON analyses
		BEGIN
			SELECT RAISE(ABORT, 'analysis identity and input are immutable');
		END;

		CREATE TRIGGER IF NOT EXISTS tasks_monotone
		BEFORE UPDATE OF status ON processing_tasks
		WHEN NOT (
			(OLD.status = 'PENDING'     AND NEW.status IN ('IN_PROGRESS', 'SKIPPED')) OR
			(OLD.status = 'IN_PROGRESS' AND NEW.status IN ('COMPLETED', 'FAILED'))
		)
		BEGIN
			SELECT RAISE(ABORT, 'illegal task status transition');
		END;
	`
	_, err := s.execHook(ctx, s.db, schema)
	return err
}

// ─── Capture ─────────────────────────────────────────────────────────────────

// Save stores a new analysis with status CREATED and queues one PENDING
// task per sink. It returns the new analysis id.
func (s *Store) Save(ctx context.Context, p CaptureParams, sinks []SinkType) (string, error) {
	if strings.TrimSpace(p.ThreadID) == "" {
		return "", fmt.Errorf("%w: thread_id is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.TaskName) == "" {
		return "", fmt.Errorf("%w: task_name is required", ErrInvalidParams)
	}

	id := newID()
	now := formatTime(timeNow())

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: begin tx: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = s.execHook(ctx, tx,
		`INSERT INTO analyses (id, thread_id, session_id, process_instance_id, task_name, status,
		                       source_service, input_data, output_data, raw_response, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.ThreadID, nullableString(p.SessionID), nullableString(p.ProcessInstanceID), p.TaskName,
		string(StatusCreated), p.SourceService, p.InputData.JSON(), nullableValue(p.OutputData),
		nullableString(truncateField(p.RawResponse, s.cfg.MaxFieldLength)), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert analysis: %w", ErrStorageUnavailable, err)
	}

	if err := s.insertTags(ctx, tx, id, p.Tags); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if _, err := s.insertTasks(ctx, tx, id, sinks, now); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if err := s.commitHook(tx); err != nil {
		return "", fmt.Errorf("%w: commit: %w", ErrStorageUnavailable, err)
	}
	return id, nil
}

func (s *Store) insertTags(ctx context.Context, tx *sql.Tx, analysisID string, tags []string) error {
	for _, tag := range NormalizeTags(tags) {
		if _, err := s.execHook(ctx, tx,
			"INSERT OR IGNORE INTO analysis_tags (analysis_id, tag) VALUES (?, ?)",
			analysisID, tag,
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

const analysisColumns = `
	a.id, a.thread_id, a.session_id, a.process_instance_id, a.task_name, a.status,
	a.source_service, a.input_data, a.output_data, a.raw_response, a.created_at, a.updated_at,
	(SELECT group_concat(t.tag, char(31)) FROM analysis_tags t WHERE t.analysis_id = a.id)`

// Get returns the analysis with id. A missing id is reported with
// found == false and a nil error.
func (s *Store) Get(ctx context.Context, id string) (*Analysis, bool, error) {
	results, err := s.queryAnalyses(ctx,
		"SELECT "+analysisColumns+" FROM analyses a WHERE a.id = ?", id)
	if err != nil {
		return nil, false, fmt.Errorf("get analysis %s: %w", id, err)
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return &results[0], true, nil
}

// GetByThread returns the analyses of a thread, most recent first.
func (s *Store) GetByThread(ctx context.Context, threadID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = DefaultThreadLimit
	}
	return s.Search(ctx, SearchOptions{ThreadID: threadID, Limit: limit})
}

// SetStatus applies an administrative status change such as archival.
// It reports false when the analysis does not exist.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) (bool, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return false, err
	}
	res, err := s.execHook(ctx, s.db,
		"UPDATE analyses SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(timeNow()), id,
	)
	if err != nil {
		return false, fmt.Errorf("set status %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) queryAnalyses(ctx context.Context, query string, args ...any) ([]Analysis, error) {
	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []Analysis{}
	for rows.Next() {
		var (
			a                                      Analysis
			session, process, output, raw, tagList sql.NullString
			status, input, createdAt, updatedAt    string
		)
		if err := rows.Scan(
			&a.ID, &a.ThreadID, &session, &process, &a.TaskName, &status,
			&a.SourceService, &input, &output, &raw, &createdAt, &updatedAt, &tagList,
		); err != nil {
			return nil, err
		}
		a.SessionID = session.String
		a.ProcessInstanceID = process.String
		a.RawResponse = raw.String
		a.Status = Status(status)

		if a.InputData, err = value.ParseString(input); err != nil {
			return nil, fmt.Errorf("analysis %s: input_data: %w", a.ID, err)
		}
		if output.Valid {
			if a.OutputData, err = value.ParseString(output.String); err != nil {
				return nil, fmt.Errorf("analysis %s: output_data: %w", a.ID, err)
			}
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("analysis %s: created_at: %w", a.ID, err)
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("analysis %s: updated_at: %w", a.ID, err)
		}
		a.Tags = splitTags(tagList.String)
		results = append(results, a)
	}
	return results, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableValue(v value.Value) *string {
	if v.IsNull() {
		return nil
	}
	s := v.JSON()
	return &s
}

// NormalizeTags trims, de-duplicates and sorts tags, dropping empty ones.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	tags := strings.Split(s, "\x1f")
	sort.Strings(tags)
	return tags
}

// truncateField shortens s to max runes followed by TruncationMarker.
func truncateField(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + TruncationMarker
}
