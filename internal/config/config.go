// Package config loads Hoofprint's YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/embed"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

// FileName is the config file looked up inside the data directory.
const FileName = "config.yaml"

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendWeaviate = "weaviate"
	BackendNeo4j    = "neo4j"

	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
)

// Duration wraps time.Duration so YAML can say "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Config is the complete configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
	Capture    CaptureConfig    `yaml:"capture"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Graph      GraphConfig      `yaml:"graph"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CaptureConfig configures the capture store.
type CaptureConfig struct {
	// MaxFieldLength bounds raw_response in runes; 0 is unlimited.
	MaxFieldLength   int    `yaml:"max_field_length"`
	MaxSearchResults int    `yaml:"max_search_results"`
	SourceService    string `yaml:"source_service"`
}

// PipelineConfig configures task processing.
type PipelineConfig struct {
	SinkTimeout Duration `yaml:"sink_timeout"`
	BatchLimit  int      `yaml:"batch_limit"`
	StaleAfter  Duration `yaml:"stale_after"`
}

// SimilarityConfig configures the similarity sink.
type SimilarityConfig struct {
	Enabled       bool                       `yaml:"enabled"`
	Backend       string                     `yaml:"backend"`
	ExcerptLength int                        `yaml:"excerpt_length"`
	Embedder      EmbedderConfig             `yaml:"embedder"`
	Weaviate      vectorindex.WeaviateConfig `yaml:"weaviate"`
}

// EmbedderConfig selects and configures the embedder.
type EmbedderConfig struct {
	Provider       string             `yaml:"provider"`
	HashDimensions int                `yaml:"hash_dimensions"`
	OpenAI         embed.OpenAIConfig `yaml:"openai"`
}

// GraphConfig configures the graph sink.
type GraphConfig struct {
	Enabled bool                   `yaml:"enabled"`
	Backend string                 `yaml:"backend"`
	Neo4j   graphstore.Neo4jConfig `yaml:"neo4j"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultDataDir returns ~/.hoofprint.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hoofprint"
	}
	return filepath.Join(home, ".hoofprint")
}

// Default returns a configuration with both sinks enabled on local
// SQLite backends.
func Default() *Config {
	return &Config{
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
		Capture: CaptureConfig{
			MaxSearchResults: 1000,
			SourceService:    pipeline.DefaultSourceService,
		},
		Pipeline: PipelineConfig{
			SinkTimeout: Duration(pipeline.DefaultSinkTimeout),
			BatchLimit:  pipeline.DefaultBatchLimit,
			StaleAfter:  Duration(pipeline.DefaultStaleAfter),
		},
		Similarity: SimilarityConfig{
			Enabled:       true,
			Backend:       BackendSQLite,
			ExcerptLength: 1000,
			Embedder: EmbedderConfig{
				Provider:       EmbedderHash,
				HashDimensions: embed.DefaultHashDimensions,
				OpenAI:         embed.OpenAIConfig{Model: embed.DefaultOpenAIModel},
			},
			Weaviate: vectorindex.WeaviateConfig{Class: vectorindex.DefaultWeaviateClass},
		},
		Graph: GraphConfig{
			Enabled: true,
			Backend: BackendSQLite,
			Neo4j:   graphstore.Neo4jConfig{Username: "neo4j", Database: "neo4j"},
		},
	}
}

// Load reads path over the defaults, then applies environment overrides
// and validates. An empty path means DataDir/config.yaml, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		dir := DefaultDataDir()
		if v, ok := os.LookupEnv("HOOFPRINT_DATA_DIR"); ok && v != "" {
			dir = v
		}
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Setting a backend URL
// also selects that backend.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	if v, ok := get("HOOFPRINT_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := get("HOOFPRINT_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("HOOFPRINT_WEAVIATE_URL"); ok {
		c.Similarity.Backend = BackendWeaviate
		c.Similarity.Weaviate.URL = v
	}
	if v, ok := get("HOOFPRINT_NEO4J_URI"); ok {
		c.Graph.Backend = BackendNeo4j
		c.Graph.Neo4j.URI = v
	}
	if v, ok := get("HOOFPRINT_NEO4J_PASSWORD"); ok {
		c.Graph.Neo4j.Password = v
	}
	if v, ok := get("OPENAI_API_KEY"); ok {
		c.Similarity.Embedder.OpenAI.APIKey = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Capture.MaxFieldLength < 0 {
		return fmt.Errorf("config: capture.max_field_length must not be negative")
	}
	if c.Pipeline.SinkTimeout.Duration() < 0 || c.Pipeline.StaleAfter.Duration() < 0 {
		return fmt.Errorf("config: pipeline durations must not be negative")
	}
	if c.Pipeline.BatchLimit < 0 {
		return fmt.Errorf("config: pipeline.batch_limit must not be negative")
	}

	if c.Similarity.Enabled {
		switch c.Similarity.Backend {
		case BackendSQLite:
		case BackendWeaviate:
			if c.Similarity.Weaviate.URL == "" {
				return fmt.Errorf("config: similarity.weaviate.url is required for the weaviate backend")
			}
		default:
			return fmt.Errorf("config: unknown similarity.backend %q", c.Similarity.Backend)
		}
		switch c.Similarity.Embedder.Provider {
		case EmbedderHash:
		case EmbedderOpenAI:
			if c.Similarity.Embedder.OpenAI.APIKey == "" {
				return fmt.Errorf("config: OPENAI_API_KEY is required for the openai embedder")
			}
		default:
			return fmt.Errorf("config: unknown similarity.embedder.provider %q", c.Similarity.Embedder.Provider)
		}
	}

	if c.Graph.Enabled {
		switch c.Graph.Backend {
		case BackendSQLite:
		case BackendNeo4j:
			if c.Graph.Neo4j.URI == "" {
				return fmt.Errorf("config: graph.neo4j.uri is required for the neo4j backend")
			}
		default:
			return fmt.Errorf("config: unknown graph.backend %q", c.Graph.Backend)
		}
	}
	return nil
}

// CaptureStore returns the capture store settings.
func (c *Config) CaptureStore() capture.Config {
	return capture.Config{
		DataDir:          c.DataDir,
		MaxFieldLength:   c.Capture.MaxFieldLength,
		MaxSearchResults: c.Capture.MaxSearchResults,
	}
}

// PipelineOptions returns the pipeline settings.
func (c *Config) PipelineOptions() pipeline.Config {
	return pipeline.Config{
		SinkTimeout:   c.Pipeline.SinkTimeout.Duration(),
		BatchLimit:    c.Pipeline.BatchLimit,
		StaleAfter:    c.Pipeline.StaleAfter.Duration(),
		SourceService: c.Capture.SourceService,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
