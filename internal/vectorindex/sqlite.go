package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/HendryAvila/hoofprint/internal/sqlitedb"
)

// SQLiteFile is the database file name of the local index.
const SQLiteFile = "vectors.db"

// SQLite is a brute-force Index and Querier over a local database. It
// suits the volumes of a single-node deployment.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) dir/vectors.db.
func OpenSQLite(dir string) (*SQLite, error) {
	db, err := sqlitedb.Open(dir, SQLiteFile)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vectors (
			analysis_id TEXT PRIMARY KEY,
			dims        INTEGER NOT NULL,
			vector      BLOB    NOT NULL,
			payload     TEXT    NOT NULL,
			updated_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vectorindex: migration: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Upsert writes doc, replacing any previous vector for the analysis.
func (s *SQLite) Upsert(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return fmt.Errorf("vectorindex: encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vectors (analysis_id, dims, vector, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(analysis_id) DO UPDATE SET
		   dims = excluded.dims,
		   vector = excluded.vector,
		   payload = excluded.payload,
		   updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		doc.AnalysisID, len(doc.Vector), encodeVector(doc.Vector), string(payload),
	)
	if err != nil {
		return fmt.Errorf("vectorindex: upsert %s: %w", doc.AnalysisID, err)
	}
	return nil
}

// Query scores every stored vector of the same dimension against vector
// and returns the best limit matches.
func (s *SQLite) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT analysis_id, vector, payload FROM vectors WHERE dims = ?", len(vector))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := []Match{}
	for rows.Next() {
		var (
			m       Match
			blob    []byte
			payload string
		)
		if err := rows.Scan(&m.AnalysisID, &blob, &payload); err != nil {
			return nil, fmt.Errorf("vectorindex: query: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &m.Payload); err != nil {
			return nil, fmt.Errorf("vectorindex: decode payload %s: %w", m.AnalysisID, err)
		}
		m.Score = Cosine(vector, decodeVector(blob))
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of stored vectors.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
