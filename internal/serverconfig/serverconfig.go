// Package serverconfig loads the deployment-level configuration
// surface spec.md §6 describes: LLM provider/model/key, hosted-repo
// token, database DSN, host/port, rate limit, timeouts, and input
// limits. It layers a YAML file under environment variables, the way
// the rest of the pack layers koanf providers.
package serverconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full runtime configuration surface.
type Config struct {
	LLM struct {
		Provider string `koanf:"provider"`
		Model    string `koanf:"model"`
		APIKey   string `koanf:"api_key"`
	} `koanf:"llm"`

	GitHub struct {
		AccessToken    string `koanf:"access_token"`
		AppID          int64  `koanf:"app_id"`
		PrivateKeyPEM  string `koanf:"private_key_pem"`
		InstallationID int64  `koanf:"installation_id"`
	} `koanf:"github"`

	Database struct {
		DSN string `koanf:"dsn"`
	} `koanf:"database"`

	Server struct {
		Host            string        `koanf:"host"`
		Port            int           `koanf:"port"`
		RateLimitPerMin int           `koanf:"rate_limit_per_minute"`
		PerAnalyzerTimeout time.Duration `koanf:"per_analyzer_timeout"`
		ReviewTimeout   time.Duration `koanf:"review_timeout"`
	} `koanf:"server"`

	Limits struct {
		MaxFilesPerReview int `koanf:"max_files_per_review"`
		MaxDiffLines      int `koanf:"max_diff_lines"`
	} `koanf:"limits"`

	LogLevel string `koanf:"log_level"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"llm.provider":                  "anthropic",
		"server.host":                   "0.0.0.0",
		"server.port":                   8080,
		"server.rate_limit_per_minute":  10,
		"server.per_analyzer_timeout":   "300s",
		"server.review_timeout":         "600s",
		"limits.max_files_per_review":   50,
		"limits.max_diff_lines":         10000,
		"log_level":                     "info",
		"database.dsn":                  "file:reviewbot.db",
	}
}

// Load builds the effective Config: built-in defaults, then configPath
// (if it exists), then environment variables prefixed REVIEWBOT_,
// each layer overriding the last.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("REVIEWBOT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "REVIEWBOT_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, cfg.Validate()
}

// Validate enforces the conditional requirements spec.md §6 names:
// an LLM API key is required whenever a remote LLM provider is in
// use, and a hosted-repo token is required only for private repos
// (so it is never mandatory here).
func (c *Config) Validate() error {
	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when llm.provider is set")
	}
	return nil
}
