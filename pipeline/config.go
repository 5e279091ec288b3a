package pipeline

import (
	"os"
	"strconv"
	"time"
)

// PluginSelection names one plugin chosen for a stage (spec.md §6.2).
type PluginSelection struct {
	Stage   string
	Name    string
	Version string
}

// ParallelConfig controls the composer's DAG fast-path for ingest.
type ParallelConfig struct {
	Enabled        bool
	MaxConcurrency int
}

// CachingConfig is carried through for plugins that consult it; the core
// itself does not cache.
type CachingConfig struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
}

// LoggingConfig controls the composer's structured logging verbosity.
type LoggingConfig struct {
	Level      string
	Structured bool
}

// Metadata is inert descriptive information the core passes through
// unexamined.
type Metadata struct {
	Name        string
	Version     string
	Description string
	CreatedAt   time.Time
}

// Config is the normalised configuration record the composer consumes
// (spec.md §6.2). It is assumed already validated by an external layer —
// the core treats unknown/zero fields as inert defaults.
type Config struct {
	Pipeline  []PluginSelection
	Parallel  ParallelConfig
	Caching   CachingConfig
	Logging   LoggingConfig
	Namespace string
	Metadata  Metadata
}

// namespaceOrDefault returns c.Namespace, defaulting to "default" per
// spec.md §6.2.
func (c Config) namespaceOrDefault() string {
	if c.Namespace == "" {
		return "default"
	}
	return c.Namespace
}

// EnvDefaults holds the tunables read from environment variables at
// startup (spec.md §6.3).
type EnvDefaults struct {
	MaxConcurrency     int
	NodeTimeout        time.Duration
	EmbedderBatchSize  int
	RetrieverBatchSize int
}

// LoadEnvDefaults reads RAG_MAX_CONCURRENCY, RAG_NODE_TIMEOUT,
// RAG_EMBEDDER_BATCH_SIZE, and RAG_RETRIEVER_BATCH_SIZE. A parse failure on
// any variable is treated as unset (the zero value), matching the
// teacher's permissive os.Getenv-plus-strconv idiom rather than failing
// startup over a malformed tuning knob.
func LoadEnvDefaults() EnvDefaults {
	var d EnvDefaults
	if n, ok := envInt("RAG_MAX_CONCURRENCY"); ok {
		d.MaxConcurrency = n
	}
	if n, ok := envInt("RAG_NODE_TIMEOUT"); ok {
		d.NodeTimeout = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt("RAG_EMBEDDER_BATCH_SIZE"); ok {
		d.EmbedderBatchSize = n
	}
	if n, ok := envInt("RAG_RETRIEVER_BATCH_SIZE"); ok {
		d.RetrieverBatchSize = n
	}
	return d
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
