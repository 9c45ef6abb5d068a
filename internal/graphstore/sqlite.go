package graphstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HendryAvila/hoofprint/internal/graph"
	"github.com/HendryAvila/hoofprint/internal/sqlitedb"
)

// SQLiteFile is the database file name of the local graph store.
const SQLiteFile = "graph.db"

// SQLite is a Backend and Reader storing fragments in a local database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) dir/graph.db.
func OpenSQLite(dir string) (*SQLite, error) {
	db, err := sqlitedb.Open(dir, SQLiteFile)
	if err != nil {
		return nil, fmt.Errorf("graphstore: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("graphstore: migration: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS graph_nodes (
			id          TEXT PRIMARY KEY,
			analysis_id TEXT    NOT NULL,
			seq         INTEGER NOT NULL,
			role        TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			name        TEXT    NOT NULL,
			key         TEXT    NOT NULL,
			value       TEXT,
			value_type  TEXT,
			leaf        INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_graph_nodes_analysis ON graph_nodes(analysis_id, seq);

		CREATE TABLE IF NOT EXISTS graph_edges (
			analysis_id  TEXT    NOT NULL,
			seq          INTEGER NOT NULL,
			from_id      TEXT    NOT NULL,
			to_id        TEXT    NOT NULL,
			relationship TEXT    NOT NULL,
			role         TEXT    NOT NULL,
			PRIMARY KEY (analysis_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_graph_edges_to ON graph_edges(to_id);
	`)
	return err
}

// ReplaceFragment deletes the analysis' nodes and edges and writes f in
// one transaction.
func (s *SQLite) ReplaceFragment(ctx context.Context, f *graph.Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graphstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_edges WHERE analysis_id = ?", f.AnalysisID); err != nil {
		return fmt.Errorf("graphstore: delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_nodes WHERE analysis_id = ?", f.AnalysisID); err != nil {
		return fmt.Errorf("graphstore: delete nodes: %w", err)
	}

	for i, n := range f.Nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_nodes (id, analysis_id, seq, role, type, name, key, value, value_type, leaf)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, f.AnalysisID, i, string(n.Role), n.Type, n.Name, n.Key,
			nullable(n.Value, n.Leaf), nullable(n.ValueType, n.Leaf), n.Leaf,
		); err != nil {
			return fmt.Errorf("graphstore: insert node %s: %w", n.Key, err)
		}
	}
	for i, e := range f.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_edges (analysis_id, seq, from_id, to_id, relationship, role)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.AnalysisID, i, e.From, e.To, e.Relationship, string(e.Role),
		); err != nil {
			return fmt.Errorf("graphstore: insert edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("graphstore: commit: %w", err)
	}
	return nil
}

// Fragment returns the stored fragment in write order. An analysis with
// nothing stored yields an empty fragment.
func (s *SQLite) Fragment(ctx context.Context, analysisID string) (*graph.Fragment, error) {
	f := graph.NewFragment(analysisID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, type, name, key, value, value_type, leaf
		 FROM graph_nodes WHERE analysis_id = ? ORDER BY seq`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("graphstore: read nodes: %w", err)
	}
	for rows.Next() {
		var (
			n              graph.Node
			val, valueType sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Role, &n.Type, &n.Name, &n.Key, &val, &valueType, &n.Leaf); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("graphstore: read nodes: %w", err)
		}
		n.AnalysisID = analysisID
		n.Value = val.String
		n.ValueType = valueType.String
		f.Nodes = append(f.Nodes, n)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: read nodes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT from_id, to_id, relationship, role
		 FROM graph_edges WHERE analysis_id = ? ORDER BY seq`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("graphstore: read edges: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		e := graph.Edge{AnalysisID: analysisID}
		if err := rows.Scan(&e.From, &e.To, &e.Relationship, &e.Role); err != nil {
			return nil, fmt.Errorf("graphstore: read edges: %w", err)
		}
		f.Edges = append(f.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: read edges: %w", err)
	}
	return f, nil
}

// Close closes the database.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

func nullable(s string, keep bool) any {
	if !keep {
		return nil
	}
	return s
}
