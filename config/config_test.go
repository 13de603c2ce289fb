package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ragchain/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Backend != "bm25" {
		t.Errorf("expected Backend=bm25, got %s", cfg.Retrieve.Backend)
	}
	if cfg.HyDE.Model != "gpt-3.5-turbo" {
		t.Errorf("expected HyDE model gpt-3.5-turbo, got %s", cfg.HyDE.Model)
	}
	if cfg.Linker.Backend != "bolt" {
		t.Errorf("expected Linker.Backend=bolt, got %s", cfg.Linker.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragchain.yaml")

	content := `
retrieve:
  top_k: 10
  backend: hybrid
hyde:
  enabled: true
  timeout: 15s
linker:
  backend: redis
  host: localhost
  port: 6380
  db: 0
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Backend != "hybrid" {
		t.Errorf("expected Backend=hybrid, got %s", cfg.Retrieve.Backend)
	}
	if cfg.HyDE.Timeout != 15*time.Second {
		t.Errorf("expected HyDE timeout 15s, got %s", cfg.HyDE.Timeout)
	}
	if cfg.Linker.DB == nil || *cfg.Linker.DB != 0 {
		t.Errorf("expected Linker.DB=0, got %v", cfg.Linker.DB)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragchain.yaml")

	content := `
ingest:
  passage_tokens: 128
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ingest.PassageTokens != 128 {
		t.Errorf("expected PassageTokens=128, got %d", cfg.Ingest.PassageTokens)
	}
}

func TestValidate_RedisRequiresConnectionParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Linker.Backend = "redis"
	cfg.Linker.Host = ""
	cfg.Linker.DB = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Linker.Host is required") {
		t.Errorf("expected host to be reported, got %v", err)
	}
	if !strings.Contains(err.Error(), "Linker.DB is required") {
		t.Errorf("expected db to be reported, got %v", err)
	}
}

func TestValidate_PasswordIsOptional(t *testing.T) {
	cfg := DefaultConfig()
	db := 2
	cfg.Linker.Backend = "redis"
	cfg.Linker.Host = "redis.local"
	cfg.Linker.DB = &db

	if err := cfg.Validate(); err != nil {
		t.Errorf("password must be optional, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRedisHost, "cache.internal")
	t.Setenv(EnvRedisPort, "6390")
	t.Setenv(EnvRedisDB, "3")
	t.Setenv(EnvRedisPassword, "secret")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Linker.Addr() != "cache.internal:6390" {
		t.Errorf("expected cache.internal:6390, got %s", cfg.Linker.Addr())
	}
	if cfg.Linker.DB == nil || *cfg.Linker.DB != 3 {
		t.Errorf("expected DB=3, got %v", cfg.Linker.DB)
	}
	if cfg.Linker.Password != "secret" {
		t.Errorf("expected password from env")
	}
}

func TestApplyEnv_BadPort(t *testing.T) {
	t.Setenv(EnvRedisPort, "not-a-port")

	err := DefaultConfig().ApplyEnv()
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadEnv_DotEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("REDIS_HOST=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set
	t.Setenv(EnvRedisHost, "")
	os.Unsetenv(EnvRedisHost)

	cfg := DefaultConfig()
	if err := cfg.LoadEnv(envPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Linker.Host != "from-dotenv" {
		t.Errorf("expected host from .env, got %q", cfg.Linker.Host)
	}
}

func TestIndexDBPath(t *testing.T) {
	path := IndexDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".ragchain", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
