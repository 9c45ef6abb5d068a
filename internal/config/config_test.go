package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Similarity.Enabled)
	assert.Equal(t, BackendSQLite, cfg.Graph.Backend)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.SinkTimeout.Duration())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hoofprint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: `+dir+`
log_level: debug
pipeline:
  sink_timeout: 5s
  batch_limit: 25
graph:
  enabled: false
similarity:
  embedder:
    hash_dimensions: 64
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.SinkTimeout.Duration())
	assert.Equal(t, 25, cfg.Pipeline.BatchLimit)
	assert.Equal(t, Duration(10*time.Minute), cfg.Pipeline.StaleAfter, "unset keys keep defaults")
	assert.False(t, cfg.Graph.Enabled)
	assert.Equal(t, 64, cfg.Similarity.Embedder.HashDimensions)
	assert.Equal(t, EmbedderHash, cfg.Similarity.Embedder.Provider)

	p := cfg.PipelineOptions()
	assert.Equal(t, 5*time.Second, p.SinkTimeout)
	assert.Equal(t, dir, cfg.CaptureStore().DataDir)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_DefaultPathMayBeAbsent(t *testing.T) {
	t.Setenv("HOOFPRINT_DATA_DIR", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, os.Getenv("HOOFPRINT_DATA_DIR"), cfg.DataDir)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  sink_timeout: soon\n"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestApplyEnv_SelectsBackends(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(env(map[string]string{
		"HOOFPRINT_DATA_DIR":       "/data",
		"HOOFPRINT_WEAVIATE_URL":   "http://weaviate:8080",
		"HOOFPRINT_NEO4J_URI":      "bolt://neo4j:7687",
		"HOOFPRINT_NEO4J_PASSWORD": "secret",
		"OPENAI_API_KEY":           "sk-x",
		"HOOFPRINT_LOG_LEVEL":      " ",
	}))
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, BackendWeaviate, cfg.Similarity.Backend)
	assert.Equal(t, "http://weaviate:8080", cfg.Similarity.Weaviate.URL)
	assert.Equal(t, BackendNeo4j, cfg.Graph.Backend)
	assert.Equal(t, "secret", cfg.Graph.Neo4j.Password)
	assert.Equal(t, "sk-x", cfg.Similarity.Embedder.OpenAI.APIKey)
	assert.Equal(t, "info", cfg.LogLevel, "blank values are ignored")
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no data dir":       func(c *Config) { c.DataDir = "" },
		"bad log level":     func(c *Config) { c.LogLevel = "loud" },
		"unknown backend":   func(c *Config) { c.Similarity.Backend = "faiss" },
		"weaviate no url":   func(c *Config) { c.Similarity.Backend = BackendWeaviate },
		"openai no key":     func(c *Config) { c.Similarity.Embedder.Provider = EmbedderOpenAI },
		"neo4j no uri":      func(c *Config) { c.Graph.Backend = BackendNeo4j },
		"negative limit":    func(c *Config) { c.Pipeline.BatchLimit = -1 },
		"negative field":    func(c *Config) { c.Capture.MaxFieldLength = -1 },
		"unknown embedder":  func(c *Config) { c.Similarity.Embedder.Provider = "word2vec" },
		"unknown graph":     func(c *Config) { c.Graph.Backend = "dgraph" },
		"negative duration": func(c *Config) { c.Pipeline.StaleAfter = Duration(-time.Second) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	disabled := Default()
	disabled.Graph.Enabled = false
	disabled.Graph.Backend = "dgraph"
	assert.NoError(t, disabled.Validate(), "disabled sinks are not checked")
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(PipelineConfig{SinkTimeout: Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "sink_timeout: 1m30s")

	var back PipelineConfig
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, 90*time.Second, back.SinkTimeout.Duration())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
	_, err = ParseLevel("trace")
	assert.Error(t, err)
}
