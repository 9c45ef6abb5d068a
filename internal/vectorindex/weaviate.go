package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultWeaviateClass is the class analyses are stored under.
const DefaultWeaviateClass = "HoofprintAnalysis"

// WeaviateConfig holds connection settings for a Weaviate index.
type WeaviateConfig struct {
	URL   string `yaml:"url"`
	Class string `yaml:"class"`
}

// Weaviate is an Index and Querier backed by a Weaviate class with
// externally supplied vectors. Object IDs are analysis IDs.
type Weaviate struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// OpenWeaviate connects, checks readiness and makes sure the class exists.
func OpenWeaviate(ctx context.Context, cfg WeaviateConfig, logger *slog.Logger) (*Weaviate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scheme, host := splitURL(cfg.URL)
	if host == "" {
		return nil, fmt.Errorf("vectorindex: weaviate url %q has no host", cfg.URL)
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create weaviate client: %w", err)
	}

	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: weaviate readiness %s: %w", cfg.URL, err)
	}
	if !ready {
		return nil, fmt.Errorf("vectorindex: weaviate at %s is not ready", cfg.URL)
	}

	class := cfg.Class
	if class == "" {
		class = DefaultWeaviateClass
	}
	w := &Weaviate{client: client, class: class, logger: logger.With("component", "vectorindex.weaviate")}
	if err := w.ensureClass(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Weaviate) ensureClass(ctx context.Context) error {
	if _, err := w.client.Schema().ClassGetter().WithClassName(w.class).Do(ctx); err == nil {
		return nil
	}
	w.logger.Info("creating weaviate class", "class", w.class)
	if err := w.client.Schema().ClassCreator().WithClass(classSchema(w.class)).Do(ctx); err != nil {
		return fmt.Errorf("vectorindex: create class %s: %w", w.class, err)
	}
	return nil
}

func classSchema(name string) *models.Class {
	text := func(n, tokenization string) *models.Property {
		return &models.Property{Name: n, DataType: []string{"text"}, Tokenization: tokenization}
	}
	return &models.Class{
		Class:       name,
		Description: "Captured analyses for similarity search",
		Vectorizer:  "none",
		Properties: []*models.Property{
			text("analysisId", "field"),
			text("threadId", "field"),
			text("sessionId", "field"),
			text("taskName", "word"),
			text("createdAt", "field"),
			{Name: "tags", DataType: []string{"text[]"}, Tokenization: "field"},
			text("excerpt", "word"),
		},
	}
}

// Upsert replaces the object with the analysis ID, creating it if absent.
func (w *Weaviate) Upsert(ctx context.Context, doc Document) error {
	props := map[string]any{
		"analysisId": doc.AnalysisID,
		"threadId":   doc.Payload.ThreadID,
		"sessionId":  doc.Payload.SessionID,
		"taskName":   doc.Payload.TaskName,
		"createdAt":  doc.Payload.CreatedAt.UTC().Format(time.RFC3339Nano),
		"tags":       doc.Payload.Tags,
		"excerpt":    doc.Payload.Excerpt,
	}

	exists, err := w.client.Data().Checker().WithClassName(w.class).WithID(doc.AnalysisID).Do(ctx)
	if err != nil {
		return fmt.Errorf("vectorindex: weaviate check %s: %w", doc.AnalysisID, err)
	}
	if exists {
		err = w.client.Data().Updater().
			WithClassName(w.class).
			WithID(doc.AnalysisID).
			WithProperties(props).
			WithVector(doc.Vector).
			Do(ctx)
	} else {
		_, err = w.client.Data().Creator().
			WithClassName(w.class).
			WithID(doc.AnalysisID).
			WithProperties(props).
			WithVector(doc.Vector).
			Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("vectorindex: weaviate upsert %s: %w", doc.AnalysisID, err)
	}
	return nil
}

// Query runs a nearVector search. Score is 1 - cosine distance.
func (w *Weaviate) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	result, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(
			graphql.Field{Name: "analysisId"},
			graphql.Field{Name: "threadId"},
			graphql.Field{Name: "sessionId"},
			graphql.Field{Name: "taskName"},
			graphql.Field{Name: "createdAt"},
			graphql.Field{Name: "tags"},
			graphql.Field{Name: "excerpt"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: weaviate query: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("vectorindex: weaviate query: %s", result.Errors[0].Message)
	}
	return resultMatches(result.Data, w.class), nil
}

// Close is a no-op; the client holds no persistent connections.
func (w *Weaviate) Close(context.Context) error { return nil }

// resultMatches decodes the Get.<class> list of a GraphQL response.
func resultMatches(data map[string]models.JSONObject, class string) []Match {
	matches := []Match{}
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return matches
	}
	items, ok := get[class].([]any)
	if !ok {
		return matches
	}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		m := Match{AnalysisID: str(obj["analysisId"])}
		m.Payload = Payload{
			ThreadID:  str(obj["threadId"]),
			SessionID: str(obj["sessionId"]),
			TaskName:  str(obj["taskName"]),
			Excerpt:   str(obj["excerpt"]),
		}
		if ts, err := time.Parse(time.RFC3339Nano, str(obj["createdAt"])); err == nil {
			m.Payload.CreatedAt = ts
		}
		if tags, ok := obj["tags"].([]any); ok {
			for _, t := range tags {
				m.Payload.Tags = append(m.Payload.Tags, str(t))
			}
		}
		if add, ok := obj["_additional"].(map[string]any); ok {
			if d, ok := add["distance"].(float64); ok {
				m.Score = 1 - d
			}
		}
		matches = append(matches, m)
	}
	return matches
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func splitURL(raw string) (scheme, host string) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "https", strings.TrimSuffix(strings.TrimPrefix(raw, "https://"), "/")
	case strings.HasPrefix(raw, "http://"):
		return "http", strings.TrimSuffix(strings.TrimPrefix(raw, "http://"), "/")
	default:
		return "http", strings.TrimSuffix(raw, "/")
	}
}
