package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Success(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cfgtest")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfgContent := `host: "localhost"
port: 8080
database:
  connection_string: "user:pass@/dbname"
scheduling:
  max_concurrent: 5
interest:
  reply_threshold: 0.6
vector_store:
  backend: qdrant
  dimensions: 768
`
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Host != "localhost" || cfg.Port != 8080 {
		t.Errorf("unexpected host/port: %v:%v", cfg.Host, cfg.Port)
	}
	if cfg.Database.ConnectionString != "user:pass@/dbname" {
		t.Errorf("database connection incorrect: %v", cfg.Database.ConnectionString)
	}
	if cfg.Scheduling.MaxConcurrent != 5 {
		t.Errorf("scheduling.max_concurrent not applied: %v", cfg.Scheduling.MaxConcurrent)
	}
	if cfg.Interest.ReplyThreshold != 0.6 {
		t.Errorf("interest.reply_threshold not applied: %v", cfg.Interest.ReplyThreshold)
	}
	if cfg.VectorStore.Backend != "qdrant" || cfg.VectorStore.Dimensions != 768 {
		t.Errorf("vector_store overrides not applied: %+v", cfg.VectorStore)
	}
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cfgtest")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("host: localhost\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.VectorStore.Backend != "memory" {
		t.Errorf("expected default vector store backend 'memory', got %v", cfg.VectorStore.Backend)
	}
	if cfg.VectorStore.Dimensions != 1536 {
		t.Errorf("expected default dimensions 1536, got %v", cfg.VectorStore.Dimensions)
	}
	if cfg.Auth.SecretKey == "" {
		t.Error("expected a non-empty default auth secret key")
	}
	if cfg.Scheduling.MaxConcurrent != 3 {
		t.Errorf("expected default scheduling.max_concurrent 3, got %v", cfg.Scheduling.MaxConcurrent)
	}
}

func TestLoadConfig_EnvOverlay(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "cfgtest")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("host: localhost\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-test-anthropic")
	t.Setenv("OPENAI_API_KEY", "sk-test-openai")

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AnthropicKey != "sk-test-anthropic" {
		t.Errorf("env overlay for anthropic key not applied: %v", cfg.AnthropicKey)
	}
	if cfg.OpenAIAPIKey != "sk-test-openai" {
		t.Errorf("env overlay for openai key not applied: %v", cfg.OpenAIAPIKey)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "bad.*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.WriteString("not: [invalid yaml"); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}
	tmpFile.Close()

	_, err = LoadConfig(tmpFile.Name())
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}
