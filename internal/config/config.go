// Package config loads llminvoke configuration from a YAML file, a .env file
// and LLMINVOKE_ environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override file values.
const EnvPrefix = "LLMINVOKE_"

// Provider names recognised under the providers section.
const (
	ProviderOpenAI   = "openai"
	ProviderAnyscale = "anyscale"
	ProviderVertex   = "vertex"
	ProviderBedrock  = "bedrock"
)

// Config is the top-level configuration.
type Config struct {
	Server      ServerConfig              `koanf:"server"`
	Log         LogConfig                 `koanf:"log"`
	Providers   map[string]ProviderConfig `koanf:"providers"`
	Transcripts TranscriptConfig          `koanf:"transcripts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// ProviderConfig holds the settings for one backend. Not every field applies
// to every provider: Project and Location are Vertex-only, Region is
// Bedrock-only, APIKey and BaseURL are for the OpenAI-compatible ones.
type ProviderConfig struct {
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Project  string        `koanf:"project"`
	Location string        `koanf:"location"`
	Region   string        `koanf:"region"`
	Timeout  time.Duration `koanf:"timeout"`
}

// TranscriptConfig controls where A/B transcripts are written.
type TranscriptConfig struct {
	Dir string `koanf:"dir"`
}

// defaults are loaded before the file so any key can be omitted.
var defaults = map[string]any{
	"server.port":          8080,
	"server.read_timeout":  "30s",
	"server.write_timeout": "120s",
	"log.level":            "info",
	"log.format":           "text",
	"transcripts.dir":      ".",
}

// Load reads configuration from path (optional: an empty path skips the
// file), layers LLMINVOKE_ environment overrides on top, expands ${VAR}
// placeholders in credentials and validates the result.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// LLMINVOKE_SERVER_PORT -> server.port
	// LLMINVOKE_PROVIDERS_OPENAI_API_KEY -> providers.openai.api_key
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = expand(p.APIKey)
		p.Project = expand(p.Project)
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fieldKeys are the multi-word leaf keys whose underscores must survive the
// env var transform.
var fieldKeys = []string{"api_key", "base_url", "read_timeout", "write_timeout"}

// envKey maps an environment variable name to a koanf key path. Single
// underscores separate path segments, except inside the known multi-word
// field names above.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, f := range fieldKeys {
		if strings.HasSuffix(key, "_"+f) {
			head := strings.TrimSuffix(key, "_"+f)
			return strings.ReplaceAll(head, "_", ".") + "." + f
		}
	}
	return strings.ReplaceAll(key, "_", ".")
}

// expand resolves a whole-value ${VAR} placeholder from the environment.
// Anything else is returned unchanged.
func expand(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	for name := range c.Providers {
		switch name {
		case ProviderOpenAI, ProviderAnyscale, ProviderVertex, ProviderBedrock:
		default:
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	if p, ok := c.Providers[ProviderVertex]; ok && p.Project == "" {
		return fmt.Errorf("providers.vertex.project is required")
	}
	return nil
}
