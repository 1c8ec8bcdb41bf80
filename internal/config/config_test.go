package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Document.URI)
	assert.Equal(t, "skillforge", cfg.Document.Database)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, 72*time.Hour, cfg.Resume.TTL)
	assert.Equal(t, "anthropic", cfg.Generator.Provider)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
document:
  uri: mongodb://db.internal:27017
  database: campaigns
generator:
  provider: ollama
  model: llama3
engine:
  max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db.internal:27017", cfg.Document.URI)
	assert.Equal(t, "campaigns", cfg.Document.Database)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, "llama3", cfg.Generator.Model)
	assert.Equal(t, 5, cfg.Engine.MaxRetries)
	// Defaults still apply for keys the file omits.
	assert.Equal(t, "localhost:6379", cfg.Resume.Addr)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
generator:
  provider: markov-chain
  model: whatever
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
