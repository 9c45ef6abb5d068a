// Package sqlitedb opens SQLite databases with the pragmas every Hoofprint
// store relies on.
//
// Pragmas are passed in the DSN so that each pooled connection gets them,
// not only the first one database/sql happens to hand out.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// BusyTimeoutMillis is how long a connection waits on a locked database.
const BusyTimeoutMillis = 5000

// DSN builds the modernc.org/sqlite data source name for path.
// Write transactions begin IMMEDIATE so that two writers never deadlock
// upgrading a shared lock.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", BusyTimeoutMillis))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open creates dir if needed and opens dir/name. The returned handle has
// been pinged once.
func Open(dir, name string) (*sql.DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlitedb: create data dir: %w", err)
	}
	path := filepath.Join(dir, name)
	db, err := openDB("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitedb: ping %s: %w", path, err)
	}
	return db, nil
}
