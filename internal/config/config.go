// Package config loads gateway configuration from an optional YAML file and
// environment variables. Env vars win over file values.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	AzureOpenAI AzureOpenAIConfig `koanf:"azure_openai"`
	Storage     StorageConfig     `koanf:"storage"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type AzureOpenAIConfig struct {
	Endpoint   string `koanf:"endpoint"`
	APIKey     string `koanf:"api_key"`
	Deployment string `koanf:"deployment"`
	APIVersion string `koanf:"api_version"`
}

type StorageConfig struct {
	// Backend selects the chat log sink: sqlite, memory, or none.
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// sections are the top-level config groups env var names map into.
var sections = []string{"server", "azure_openai", "storage"}

func envToKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		for _, section := range sections {
			if strings.HasPrefix(s, section+"_") {
				return section + "." + strings.TrimPrefix(s, section+"_")
			}
		}
		return s
	}
}

// Load reads configuration in order of increasing precedence: defaults,
// config file (path from CHATGATE_CONFIG, default config.yaml, skipped when
// absent), bare AZURE_OPENAI_* env vars, then CHATGATE_* env vars.
func Load() (*Config, error) {
	k := koanf.New(".")

	k.Set("server.port", 8000)
	k.Set("azure_openai.api_version", "2024-05-01-preview")
	k.Set("storage.backend", "sqlite")
	k.Set("storage.path", "./data/chatlog.db")

	path := os.Getenv("CHATGATE_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// The Azure SDK-conventional names work without the CHATGATE_ prefix.
	if err := k.Load(env.Provider("AZURE_OPENAI_", ".", func(s string) string {
		return "azure_openai." + strings.ToLower(strings.TrimPrefix(s, "AZURE_OPENAI_"))
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider("CHATGATE_", ".", envToKey("CHATGATE_")), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.AzureOpenAI.Endpoint = strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/")

	return &cfg, nil
}

// Validate reports missing backend credentials. The process must refuse to
// serve without them.
func (c *Config) Validate() error {
	var missing []string
	if c.AzureOpenAI.Endpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if c.AzureOpenAI.APIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if c.AzureOpenAI.Deployment == "" {
		missing = append(missing, "AZURE_OPENAI_DEPLOYMENT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Storage.Backend {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("unknown storage backend %q (use sqlite, memory, or none)", c.Storage.Backend)
	}

	return nil
}
