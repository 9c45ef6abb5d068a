package capture

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/hoofprint/internal/value"
)

func newHookedStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func params() CaptureParams {
	return CaptureParams{ThreadID: "t", TaskName: "demo", InputData: value.MustParse(`{"a":1}`)}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSave_StorageFailuresAreWrapped(t *testing.T) {
	boom := errors.New("disk I/O error")

	cases := map[string]func(s *Store){
		"begin": func(s *Store) {
			s.hooks.beginTx = func(context.Context, *sql.DB) (*sql.Tx, error) { return nil, boom }
		},
		"insert task": func(s *Store) {
			s.hooks.exec = func(ctx context.Context, db execer, q string, args ...any) (sql.Result, error) {
				if strings.Contains(q, "processing_tasks") {
					return nil, boom
				}
				return db.ExecContext(ctx, q, args...)
			}
		},
		"commit": func(s *Store) {
			s.hooks.commit = func(tx *sql.Tx) error {
				_ = tx.Rollback()
				return boom
			}
		},
	}
	for name, inject := range cases {
		t.Run(name, func(t *testing.T) {
			s := newHookedStore(t)
			inject(s)

			_, err := s.Save(context.Background(), params(), []SinkType{SinkGraph})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStorageUnavailable))
			assert.True(t, errors.Is(err, boom))

			assert.Zero(t, countRows(t, s, "analyses"), "nothing is captured")
			assert.Zero(t, countRows(t, s, "processing_tasks"))
		})
	}
}

func TestRecoverStale_FailsOldInProgressTasks(t *testing.T) {
	s := newHookedStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	orig := timeNow
	timeNow = func() time.Time { return clock }
	t.Cleanup(func() { timeNow = orig })

	id, err := s.Save(ctx, params(), []SinkType{SinkGraph, SinkSimilarity})
	require.NoError(t, err)

	stuck, _, err := s.ClaimNext(ctx, ClaimFilter{SinkType: SinkSimilarity})
	require.NoError(t, err)

	clock = base.Add(9 * time.Minute)
	fresh, _, err := s.ClaimNext(ctx, ClaimFilter{SinkType: SinkGraph})
	require.NoError(t, err)

	clock = base.Add(12 * time.Minute)
	n, err := s.RecoverStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, err := s.TaskStatus(ctx, id)
	require.NoError(t, err)
	byID := map[string]ProcessingTask{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, TaskFailed, byID[stuck.ID].Status)
	assert.True(t, strings.HasPrefix(byID[stuck.ID].ErrorMessage, StaleMessage))
	assert.Equal(t, TaskInProgress, byID[fresh.ID].Status)

	ok, err := s.Complete(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, ok)
	a, _, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, a.Status)
}

func TestTruncateField(t *testing.T) {
	assert.Equal(t, "abc", truncateField("abc", 0))
	assert.Equal(t, "abc", truncateField("abc", 3))
	assert.Equal(t, "ab"+TruncationMarker, truncateField("abc", 2))
}
