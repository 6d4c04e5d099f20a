package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/semcache/semcache/pkg/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Cache.EvictionPolicy != "lru" {
		t.Errorf("expected default eviction policy lru, got %s", cfg.Cache.EvictionPolicy)
	}
	if cfg.Cache.SemanticThreshold != 0.85 {
		t.Errorf("expected default threshold 0.85, got %f", cfg.Cache.SemanticThreshold)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("expected default provider hash, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model text-embedding-3-small, got %s", cfg.Embedding.Model)
	}
	if cfg.Index.Backend != "memory" {
		t.Errorf("expected default index backend memory, got %s", cfg.Index.Backend)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected default storage backend memory, got %s", cfg.Storage.Backend)
	}
}

func TestPolicyConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.MaxSizeBytes = 1024
	cfg.Cache.EvictionPolicy = "lfu"
	cfg.Cache.SemanticEnabled = false
	cfg.Cache.DefaultTTL = 10 * time.Minute

	policy := cfg.Policy()
	if policy.MaxSizeBytes != 1024 {
		t.Errorf("expected max size 1024, got %d", policy.MaxSizeBytes)
	}
	if policy.Eviction != types.EvictLFU {
		t.Errorf("expected lfu, got %s", policy.Eviction)
	}
	if policy.SemanticEnabled {
		t.Error("expected semantic disabled")
	}
	if policy.DefaultTTL != 10*time.Minute {
		t.Errorf("expected ttl 10m, got %s", policy.DefaultTTL)
	}
	if err := policy.Validate(); err != nil {
		t.Errorf("converted policy should be valid: %v", err)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestValidate_InvalidThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.SemanticThreshold = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected error for threshold > 1")
	}

	cfg.Cache.SemanticThreshold = -0.1
	if err := Validate(cfg); err == nil {
		t.Error("expected error for negative threshold")
	}
}

func TestValidate_InvalidEvictionPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.EvictionPolicy = "random"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported eviction policy")
	}
}

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "cohere"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported embedding provider")
	}
}

func TestValidate_InvalidIndexBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Backend = "elasticsearch"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported index backend")
	}
}

func TestValidate_QdrantRequiresHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Backend = "qdrant"
	cfg.Index.Host = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected error for qdrant backend without host")
	}

	cfg.Index.Host = "localhost:6334"
	if err := Validate(cfg); err != nil {
		t.Errorf("qdrant backend with host should be valid: %v", err)
	}
}

func TestValidate_PineconeRequiresAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Backend = "pinecone"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for pinecone backend without api key")
	}
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected error for sqlite backend without path")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.Cache.SemanticThreshold = 5.0
	cfg.Index.Backend = "elasticsearch"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	for _, want := range []string{"server.port", "semantic_threshold", "index.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${NONEXISTENT_VAR:-fallback}", "fallback"},
		{"${NONEXISTENT_VAR}", "${NONEXISTENT_VAR}"},
		{"no-vars-here", "no-vars-here"},
		{"${TEST_VAR:-default}", "hello"}, // env var exists, ignore default
	}

	for _, tt := range tests {
		result := InterpolateEnv(tt.input)
		if result != tt.expected {
			t.Errorf("InterpolateEnv(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9090
  host: 127.0.0.1

cache:
  max_size_bytes: 1048576
  eviction_policy: lfu
  semantic_threshold: 0.90
  default_ttl: 30m

index:
  backend: qdrant
  host: localhost:6334
  collection: test-cache
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "semcache.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Cache.MaxSizeBytes != 1048576 {
		t.Errorf("expected max size 1048576, got %d", cfg.Cache.MaxSizeBytes)
	}
	if cfg.Cache.EvictionPolicy != "lfu" {
		t.Errorf("expected eviction policy lfu, got %s", cfg.Cache.EvictionPolicy)
	}
	if cfg.Cache.SemanticThreshold != 0.90 {
		t.Errorf("expected threshold 0.90, got %f", cfg.Cache.SemanticThreshold)
	}
	if cfg.Cache.DefaultTTL != 30*time.Minute {
		t.Errorf("expected ttl 30m, got %s", cfg.Cache.DefaultTTL)
	}
	if cfg.Index.Backend != "qdrant" {
		t.Errorf("expected backend qdrant, got %s", cfg.Index.Backend)
	}
	if cfg.Index.Collection != "test-cache" {
		t.Errorf("expected collection test-cache, got %s", cfg.Index.Collection)
	}
}

func TestLoadFromFile_WithEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
embedding:
  provider: openai
  api_key: ${TEST_API_KEY}
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "semcache.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Embedding.APIKey != "sk-test-123" {
		t.Errorf("expected interpolated API key, got %s", cfg.Embedding.APIKey)
	}
}

func TestLoadFromFile_InvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/semcache.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "semcache.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_InvalidValues(t *testing.T) {
	content := `
server:
  port: 99999
cache:
  semantic_threshold: 5.0
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "semcache.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFromFile_DefaultsPreserved(t *testing.T) {
	// Partial config should preserve defaults for unset fields
	content := `
server:
  port: 3000
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "semcache.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	// Defaults should be preserved for unset fields
	if cfg.Cache.SemanticThreshold != 0.85 {
		t.Errorf("expected default threshold 0.85, got %f", cfg.Cache.SemanticThreshold)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", cfg.Embedding.Model)
	}
}

func TestGenerateTemplate(t *testing.T) {
	tmpl := GenerateTemplate()

	// Verify key sections exist
	required := []string{
		"server:", "port:", "host:",
		"cache:", "eviction_policy:", "semantic_threshold:",
		"embedding:", "provider:", "model:",
		"index:", "backend:", "collection:",
		"storage:",
		"journal:", "queue_size:",
		"recorder:", "analytics:", "telemetry:",
	}

	for _, s := range required {
		if !strings.Contains(tmpl, s) {
			t.Errorf("template missing %q", s)
		}
	}
}

func TestGenerateTemplate_RoundTrips(t *testing.T) {
	// The template itself should load and validate.
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "semcache.yaml")
	if err := os.WriteFile(cfgPath, []byte(GenerateTemplate()), 0644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("template should load cleanly: %v", err)
	}
	if cfg.Cache.EvictionPolicy != "lru" {
		t.Errorf("expected lru from template, got %s", cfg.Cache.EvictionPolicy)
	}
}
