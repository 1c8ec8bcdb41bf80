package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Load reads configuration from the given file path (optional) plus
// SKILLFORGE_-prefixed environment variables, applies defaults, and
// validates the result.
//
// Precedence, highest first: environment, config file, defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("SKILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers defaults for every key so a minimal config file
// (or none at all, for local development) still yields a valid Config.
func setDefaults(v *viper.Viper) {
	v.SetDefault("document.uri", "mongodb://localhost:27017")
	v.SetDefault("document.database", "skillforge")
	v.SetDefault("document.timeout", 10*time.Second)

	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "password")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.timeout", 15*time.Second)

	v.SetDefault("relational.path", "skillforge.db")
	v.SetDefault("relational.busy_timeout", 5*time.Second)

	v.SetDefault("resume.addr", "localhost:6379")
	v.SetDefault("resume.password", "")
	v.SetDefault("resume.db", 0)
	v.SetDefault("resume.ttl", 72*time.Hour)

	v.SetDefault("generator.provider", "anthropic")
	v.SetDefault("generator.model", "claude-sonnet-4-20250514")
	v.SetDefault("generator.timeout", 120*time.Second)

	v.SetDefault("engine.max_retries", 3)
}
