package sqlitedb

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN_CarriesPragmas(t *testing.T) {
	dsn := DSN("/tmp/x.db")
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/x.db?"))
	assert.Contains(t, dsn, "journal_mode%28WAL%29")
	assert.Contains(t, dsn, "foreign_keys%281%29")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestOpen_AppliesPragmasOnEveryConnection(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	db, err := Open(dir, "test.db")
	require.NoError(t, err)
	defer db.Close()

	db.SetMaxOpenConns(3)
	conns := make([]*sql.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		c, err := db.Conn(t.Context())
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for _, c := range conns {
		var mode string
		require.NoError(t, c.QueryRowContext(t.Context(), "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)

		var fk int
		require.NoError(t, c.QueryRowContext(t.Context(), "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
		_ = c.Close()
	}
}

func TestOpen_OpenError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	_, err := Open(t.TempDir(), "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
