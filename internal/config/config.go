// Package config loads and validates SkillForge configuration from YAML
// files and SKILLFORGE_-prefixed environment variables.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Config is the top-level configuration for the orchestration core.
type Config struct {
	Document   DocumentConfig   `mapstructure:"document" validate:"required"`
	Graph      GraphConfig      `mapstructure:"graph" validate:"required"`
	Relational RelationalConfig `mapstructure:"relational" validate:"required"`
	Resume     ResumeConfig     `mapstructure:"resume" validate:"required"`
	Generator  GeneratorConfig  `mapstructure:"generator" validate:"required"`
	Engine     EngineConfig     `mapstructure:"engine" validate:"required"`
}

// DocumentConfig configures the MongoDB document store, the primary store
// and single source of truth for campaign content.
type DocumentConfig struct {
	URI      string        `mapstructure:"uri" validate:"required"`
	Database string        `mapstructure:"database" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// GraphConfig configures the Neo4j graph store. Graph failures never fail
// a workflow; the store is best-effort.
type GraphConfig struct {
	URI      string        `mapstructure:"uri" validate:"required"`
	Username string        `mapstructure:"username" validate:"required"`
	Password string        `mapstructure:"password" validate:"required"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RelationalConfig configures the SQLite relational store holding
// auxiliary join rows (player sessions, progress).
type RelationalConfig struct {
	Path        string        `mapstructure:"path" validate:"required"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout" validate:"gt=0"`
}

// ResumeConfig configures the Redis-backed resumable state store used for
// crash-recovery snapshots. TTL bounds how long a parked or crashed
// instance stays resumable.
type ResumeConfig struct {
	Addr     string        `mapstructure:"addr" validate:"required"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// GeneratorConfig configures the external text-generation collaborator.
type GeneratorConfig struct {
	// Provider selects the LLM backend: "anthropic", "openai", or "ollama".
	Provider string        `mapstructure:"provider" validate:"required,oneof=anthropic openai ollama"`
	Model    string        `mapstructure:"model" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// EngineConfig configures the workflow graph executor.
type EngineConfig struct {
	// MaxRetries is the per-node retry ceiling for transient errors.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "invalid configuration", err)
	}
	return nil
}
