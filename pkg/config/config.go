// Package config provides configuration file support for semcache.
// It handles loading, validation, and environment variable interpolation
// for semcache.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semcache/semcache/pkg/types"
)

// Config represents the full semcache configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig holds the cache policy settings.
type CacheConfig struct {
	MaxSizeBytes       int64         `mapstructure:"max_size_bytes"`
	DefaultTTL         time.Duration `mapstructure:"default_ttl"`
	EvictionPolicy     string        `mapstructure:"eviction_policy"`
	SemanticEnabled    bool          `mapstructure:"semantic_enabled"`
	SemanticThreshold  float64       `mapstructure:"semantic_threshold"`
	EmbedTimeout       time.Duration `mapstructure:"embed_timeout"`
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	EvictionBatchLimit int           `mapstructure:"eviction_batch_limit"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	CacheSize int    `mapstructure:"cache_size"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Collection string `mapstructure:"collection"`
	Namespace  string `mapstructure:"namespace"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

// StorageConfig holds entry-store settings.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// JournalConfig holds operation-record journal settings.
type JournalConfig struct {
	Path      string `mapstructure:"path"`
	QueueSize int    `mapstructure:"queue_size"`
}

// RecorderConfig holds record derivation tunables.
type RecorderConfig struct {
	ROISavedWeight      float64 `mapstructure:"roi_saved_weight"`
	ROIConfidenceWeight float64 `mapstructure:"roi_confidence_weight"`
	MaxSuggestions      int     `mapstructure:"max_suggestions"`
}

// AnalyticsConfig holds aggregation tunables.
type AnalyticsConfig struct {
	TrendThreshold     float64 `mapstructure:"trend_threshold"`
	MaxRecommendations int     `mapstructure:"max_recommendations"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	policy := types.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			MaxSizeBytes:       policy.MaxSizeBytes,
			DefaultTTL:         policy.DefaultTTL,
			EvictionPolicy:     string(policy.Eviction),
			SemanticEnabled:    policy.SemanticEnabled,
			SemanticThreshold:  policy.SemanticThreshold,
			EmbedTimeout:       policy.EmbedTimeout,
			StoreTimeout:       policy.StoreTimeout,
			EvictionBatchLimit: policy.EvictionBatchLimit,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "text-embedding-3-small",
			CacheSize: 10000,
		},
		Index: IndexConfig{
			Backend: "memory",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Journal: JournalConfig{
			QueueSize: 1024,
		},
		Recorder: RecorderConfig{
			ROISavedWeight:      0.7,
			ROIConfidenceWeight: 0.3,
			MaxSuggestions:      3,
		},
		Analytics: AnalyticsConfig{
			TrendThreshold:     0.05,
			MaxRecommendations: 5,
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
	}
}

// Policy converts the cache section to a validated-elsewhere CachePolicy.
func (c *Config) Policy() types.CachePolicy {
	policy := types.DefaultPolicy()
	policy.MaxSizeBytes = c.Cache.MaxSizeBytes
	policy.DefaultTTL = c.Cache.DefaultTTL
	policy.Eviction = types.EvictionPolicy(c.Cache.EvictionPolicy)
	policy.SemanticEnabled = c.Cache.SemanticEnabled
	policy.SemanticThreshold = c.Cache.SemanticThreshold
	policy.EmbedTimeout = c.Cache.EmbedTimeout
	policy.StoreTimeout = c.Cache.StoreTimeout
	policy.EvictionBatchLimit = c.Cache.EvictionBatchLimit
	return policy
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Interpolate environment variables in string fields
	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a descriptive
// error listing every invalid field.
func Validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout: must be non-negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout: must be non-negative")
	}

	// Cache policy validation fails fast here rather than at engine startup.
	if err := cfg.Policy().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	// Embedding validation
	validProviders := map[string]bool{"openai": true, "hash": true, "": true}
	if !validProviders[cfg.Embedding.Provider] {
		errs = append(errs, fmt.Sprintf("embedding.provider: unsupported provider %q (supported: openai, hash)", cfg.Embedding.Provider))
	}
	if cfg.Embedding.CacheSize < 0 {
		errs = append(errs, "embedding.cache_size: must be non-negative")
	}

	// Index validation
	validBackends := map[string]bool{"memory": true, "qdrant": true, "pinecone": true, "": true}
	if !validBackends[cfg.Index.Backend] {
		errs = append(errs, fmt.Sprintf("index.backend: unsupported backend %q (supported: memory, qdrant, pinecone)", cfg.Index.Backend))
	}
	if cfg.Index.Backend == "qdrant" && cfg.Index.Host == "" {
		errs = append(errs, "index.host: required for the qdrant backend")
	}
	if cfg.Index.Backend == "pinecone" && cfg.Index.APIKey == "" {
		errs = append(errs, "index.api_key: required for the pinecone backend")
	}

	// Storage validation
	validStores := map[string]bool{"memory": true, "sqlite": true, "": true}
	if !validStores[cfg.Storage.Backend] {
		errs = append(errs, fmt.Sprintf("storage.backend: unsupported backend %q (supported: memory, sqlite)", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		errs = append(errs, "storage.path: required for the sqlite backend")
	}

	// Journal validation
	if cfg.Journal.QueueSize < 0 {
		errs = append(errs, "journal.queue_size: must be non-negative")
	}

	// Recorder validation
	if cfg.Recorder.ROISavedWeight < 0 || cfg.Recorder.ROIConfidenceWeight < 0 {
		errs = append(errs, "recorder: roi weights must be non-negative")
	}
	if cfg.Recorder.ROISavedWeight+cfg.Recorder.ROIConfidenceWeight <= 0 {
		errs = append(errs, "recorder: roi weights must sum to a positive value")
	}

	// Analytics validation
	if cfg.Analytics.TrendThreshold < 0 {
		errs = append(errs, "analytics.trend_threshold: must be non-negative")
	}

	// Telemetry validation
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.Server.Host = InterpolateEnv(cfg.Server.Host)
	cfg.Cache.EvictionPolicy = InterpolateEnv(cfg.Cache.EvictionPolicy)
	cfg.Embedding.Provider = InterpolateEnv(cfg.Embedding.Provider)
	cfg.Embedding.Model = InterpolateEnv(cfg.Embedding.Model)
	cfg.Embedding.APIKey = InterpolateEnv(cfg.Embedding.APIKey)
	cfg.Index.Backend = InterpolateEnv(cfg.Index.Backend)
	cfg.Index.Host = InterpolateEnv(cfg.Index.Host)
	cfg.Index.Collection = InterpolateEnv(cfg.Index.Collection)
	cfg.Index.Namespace = InterpolateEnv(cfg.Index.Namespace)
	cfg.Index.APIKey = InterpolateEnv(cfg.Index.APIKey)
	cfg.Storage.Backend = InterpolateEnv(cfg.Storage.Backend)
	cfg.Storage.Path = InterpolateEnv(cfg.Storage.Path)
	cfg.Journal.Path = InterpolateEnv(cfg.Journal.Path)
	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a semcache.yaml file.
func GenerateTemplate() string {
	return `# Semcache Configuration

server:
  port: 8080
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 60s

cache:
  max_size_bytes: 67108864   # 64MB
  default_ttl: 1h
  eviction_policy: lru       # lru, lfu, or fifo
  semantic_enabled: true
  semantic_threshold: 0.85   # minimum cosine similarity for a semantic hit
  embed_timeout: 5s
  store_timeout: 3s
  eviction_batch_limit: 64

embedding:
  provider: hash             # openai or hash (deterministic, offline)
  model: text-embedding-3-small
  api_key: ${OPENAI_API_KEY:-}
  cache_size: 10000

index:
  backend: memory            # memory, qdrant, or pinecone
  host: ""                   # required for qdrant
  collection: ""             # qdrant collection / pinecone index name
  namespace: ""
  api_key: ${INDEX_API_KEY:-}
  use_tls: false

storage:
  backend: memory            # memory or sqlite
  path: ""                   # required for sqlite, e.g. semcache.db

journal:
  path: ""                   # sqlite file for operation records; empty keeps them in memory
  queue_size: 1024

recorder:
  roi_saved_weight: 0.7
  roi_confidence_weight: 0.3
  max_suggestions: 3

analytics:
  trend_threshold: 0.05
  max_recommendations: 5

telemetry:
  tracing:
    enabled: false
    exporter: otlp       # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0     # 0.0 to 1.0
    insecure: true
`
}
