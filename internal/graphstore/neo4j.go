package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/HendryAvila/hoofprint/internal/graph"
)

// Neo4jConfig holds connection settings for a Neo4j graph backend.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Neo4j is a Backend and Reader on a Neo4j server. Every fragment node
// carries the :GraphNode label plus its type as a second label, and hangs
// off an (:Analysis {id}) node through role-labelled relationships.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// OpenNeo4j connects and verifies connectivity. Callers treat an error
// as the backend being unavailable.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4j, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: neo4j connectivity %s: %w", cfg.URI, err)
	}

	n := &Neo4j{driver: driver, database: cfg.Database, logger: logger.With("component", "graphstore.neo4j")}
	if err := n.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	n.logger.Info("connected to neo4j", "uri", cfg.URI)
	return n, nil
}

func (n *Neo4j) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: n.database})
}

func (n *Neo4j) ensureConstraints(ctx context.Context) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, q := range []string{
		"CREATE CONSTRAINT hoofprint_analysis_id IF NOT EXISTS FOR (a:Analysis) REQUIRE a.id IS UNIQUE",
		"CREATE CONSTRAINT hoofprint_graph_node_id IF NOT EXISTS FOR (n:GraphNode) REQUIRE n.id IS UNIQUE",
		"CREATE INDEX hoofprint_graph_node_analysis IF NOT EXISTS FOR (n:GraphNode) ON (n.analysis_id)",
	} {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("graphstore: neo4j schema: %w", err)
		}
	}
	return nil
}

// ReplaceFragment detaches and deletes the analysis' nodes, then creates
// the new ones, all inside one write transaction.
func (n *Neo4j) ReplaceFragment(ctx context.Context, f *graph.Fragment) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			"MATCH (x:GraphNode {analysis_id: $aid}) DETACH DELETE x",
			map[string]any{"aid": f.AnalysisID},
		); err != nil {
			return nil, fmt.Errorf("delete nodes: %w", err)
		}
		if _, err := tx.Run(ctx,
			"MERGE (a:Analysis {id: $aid})",
			map[string]any{"aid": f.AnalysisID},
		); err != nil {
			return nil, fmt.Errorf("merge analysis: %w", err)
		}

		for _, batch := range nodeBatches(f) {
			q := "UNWIND $nodes AS props CREATE (x:GraphNode:" + batch.label + ") SET x = props"
			if _, err := tx.Run(ctx, q, map[string]any{"nodes": batch.rows}); err != nil {
				return nil, fmt.Errorf("create %s nodes: %w", batch.label, err)
			}
		}
		for _, batch := range edgeBatches(f) {
			var q string
			if batch.root {
				q = "UNWIND $edges AS e MATCH (p:Analysis {id: $aid}) MATCH (c:GraphNode {id: e.to}) " +
					"CREATE (p)-[:" + batch.label + " {role: e.role, seq: e.seq, analysis_id: $aid}]->(c)"
			} else {
				q = "UNWIND $edges AS e MATCH (p:GraphNode {id: e.from}) MATCH (c:GraphNode {id: e.to}) " +
					"CREATE (p)-[:" + batch.label + " {role: e.role, seq: e.seq, analysis_id: $aid}]->(c)"
			}
			if _, err := tx.Run(ctx, q, map[string]any{"edges": batch.rows, "aid": f.AnalysisID}); err != nil {
				return nil, fmt.Errorf("create %s edges: %w", batch.label, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graphstore: neo4j replace %s: %w", f.AnalysisID, err)
	}
	return nil
}

// Fragment reads the stored fragment back in write order.
func (n *Neo4j) Fragment(ctx context.Context, analysisID string) (*graph.Fragment, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		f := graph.NewFragment(analysisID)

		result, err := tx.Run(ctx,
			`MATCH (x:GraphNode {analysis_id: $aid})
			 RETURN x.id AS id, x.type AS type, x.name AS name, x.role AS role, x.key AS key,
			        x.value AS value, x.value_type AS value_type, x.leaf AS leaf
			 ORDER BY x.seq`,
			map[string]any{"aid": analysisID})
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			leaf, _ := recordValue(rec, "leaf").(bool)
			f.Nodes = append(f.Nodes, graph.Node{
				ID:         recordString(rec, "id"),
				Type:       recordString(rec, "type"),
				Name:       recordString(rec, "name"),
				AnalysisID: analysisID,
				Role:       graph.Role(recordString(rec, "role")),
				Key:        recordString(rec, "key"),
				Value:      recordString(rec, "value"),
				ValueType:  recordString(rec, "value_type"),
				Leaf:       leaf,
			})
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		result, err = tx.Run(ctx,
			`MATCH (p)-[r {analysis_id: $aid}]->(c:GraphNode {analysis_id: $aid})
			 RETURN CASE WHEN p:Analysis THEN '' ELSE p.id END AS from, c.id AS to,
			        type(r) AS relationship, r.role AS role
			 ORDER BY r.seq`,
			map[string]any{"aid": analysisID})
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			from := recordString(rec, "from")
			if from == "" {
				from = graph.RootID(analysisID)
			}
			f.Edges = append(f.Edges, graph.Edge{
				From:         from,
				To:           recordString(rec, "to"),
				Relationship: recordString(rec, "relationship"),
				AnalysisID:   analysisID,
				Role:         graph.Role(recordString(rec, "role")),
			})
		}
		return f, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: neo4j read %s: %w", analysisID, err)
	}
	return out.(*graph.Fragment), nil
}

// Close closes the driver.
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// ─── Batching ────────────────────────────────────────────────────────────────

// Labels and relationship types cannot be query parameters, so they are
// grouped and spliced in after sanitizing.
var identUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func cypherIdent(s, fallback string) string {
	s = identUnsafe.ReplaceAllString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return fallback
	}
	return s
}

type batch struct {
	label string
	root  bool
	rows  []map[string]any
}

func nodeBatches(f *graph.Fragment) []batch {
	byLabel := map[string]*batch{}
	for i, n := range f.Nodes {
		label := cypherIdent(n.Type, graph.DefaultType)
		b, ok := byLabel[label]
		if !ok {
			b = &batch{label: label}
			byLabel[label] = b
		}
		props := map[string]any{
			"id":          n.ID,
			"analysis_id": f.AnalysisID,
			"seq":         int64(i),
			"type":        n.Type,
			"name":        n.Name,
			"role":        string(n.Role),
			"key":         n.Key,
			"leaf":        n.Leaf,
		}
		if n.Leaf {
			props["value"] = n.Value
			props["value_type"] = n.ValueType
		}
		b.rows = append(b.rows, props)
	}
	return sortedBatches(byLabel)
}

func edgeBatches(f *graph.Fragment) []batch {
	rootID := graph.RootID(f.AnalysisID)
	byKey := map[string]*batch{}
	for i, e := range f.Edges {
		label := cypherIdent(e.Relationship, graph.DefaultRelationship)
		root := e.From == rootID
		key := label
		if root {
			key = "^" + label
		}
		b, ok := byKey[key]
		if !ok {
			b = &batch{label: label, root: root}
			byKey[key] = b
		}
		b.rows = append(b.rows, map[string]any{
			"from": e.From,
			"to":   e.To,
			"role": string(e.Role),
			"seq":  int64(i),
		})
	}
	return sortedBatches(byKey)
}

// sortedBatches orders batches by key so a fragment always produces the
// same sequence of queries.
func sortedBatches(m map[string]*batch) []batch {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]batch, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m[k])
	}
	return out
}

func recordValue(rec *neo4j.Record, key string) any {
	v, ok := rec.Get(key)
	if !ok {
		return nil
	}
	return v
}

func recordString(rec *neo4j.Record, key string) string {
	s, _ := recordValue(rec, key).(string)
	return s
}
