package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHATGATE_CONFIG",
		"CHATGATE_SERVER_PORT",
		"CHATGATE_AZURE_OPENAI_ENDPOINT",
		"CHATGATE_STORAGE_BACKEND",
		"AZURE_OPENAI_ENDPOINT",
		"AZURE_OPENAI_API_KEY",
		"AZURE_OPENAI_DEPLOYMENT",
		"AZURE_OPENAI_API_VERSION",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// Keep the loader away from a config.yaml in the working directory.
	t.Setenv("CHATGATE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.AzureOpenAI.APIVersion != "2024-05-01-preview" {
		t.Errorf("api_version = %q", cfg.AzureOpenAI.APIVersion)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != "./data/chatlog.db" {
		t.Errorf("storage defaults wrong: %+v", cfg.Storage)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHATGATE_SERVER_PORT", "9000")
	t.Setenv("CHATGATE_AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_API_KEY", "secret")
	t.Setenv("CHATGATE_STORAGE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.AzureOpenAI.Endpoint != "https://example.openai.azure.com" {
		t.Errorf("endpoint = %q, want trailing slash trimmed", cfg.AzureOpenAI.Endpoint)
	}
	if cfg.AzureOpenAI.APIKey != "secret" {
		t.Errorf("api_key = %q", cfg.AzureOpenAI.APIKey)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 8443\nazure_openai:\n  deployment: gpt-4o\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CHATGATE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8443 {
		t.Errorf("port = %d, want 8443 from file", cfg.Server.Port)
	}
	if cfg.AzureOpenAI.Deployment != "gpt-4o" {
		t.Errorf("deployment = %q", cfg.AzureOpenAI.Deployment)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8443\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CHATGATE_CONFIG", path)
	t.Setenv("CHATGATE_SERVER_PORT", "9001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, env should win over file", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		AzureOpenAI: AzureOpenAIConfig{
			Endpoint:   "https://example.openai.azure.com",
			APIKey:     "secret",
			Deployment: "gpt-4o",
		},
		Storage: StorageConfig{Backend: "sqlite"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid config = %v", err)
	}

	missing := valid
	missing.AzureOpenAI.APIKey = ""
	missing.AzureOpenAI.Deployment = ""
	err := missing.Validate()
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	for _, want := range []string{"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_DEPLOYMENT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should name %s", err, want)
		}
	}

	badStorage := valid
	badStorage.Storage.Backend = "cosmos"
	if err := badStorage.Validate(); err == nil {
		t.Error("expected error for unknown storage backend")
	}
}
