package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "checkupai.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "data/raw_reports", cfg.Server.UploadDir)
	assert.Equal(t, "python3", cfg.OCR.PythonPath)
	assert.Equal(t, 300, cfg.OCR.TimeoutSecs)
	assert.Equal(t, "http://localhost:19530", cfg.Milvus.BaseURL)
	assert.Equal(t, "medical_knowledge", cfg.Milvus.KnowledgeCollection)
	assert.Equal(t, "user_profiles", cfg.Milvus.ProfileCollection)
	assert.Equal(t, "BAAI/bge-m3", cfg.Embedding.Model)
	assert.Equal(t, 1024, cfg.Embedding.Dim)
	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, "BAAI/bge-reranker-v2-m3", cfg.Rerank.Model)
	assert.Equal(t, "vllm", cfg.LLM.Provider)
	assert.Equal(t, 8192, cfg.LLM.MaxTokens)
	assert.Equal(t, 4, cfg.Extract.MaxConcurrent)
	assert.InDelta(t, 2.0, cfg.Extract.RequestsPerSec, 0.001)
	assert.Equal(t, 5, cfg.Retrieval.KnowledgeK)
	assert.Equal(t, 3, cfg.Retrieval.ProfileK)
	assert.Equal(t, 3, cfg.Retrieval.OverFetchFactor)
	assert.InDelta(t, 0.5, cfg.Retrieval.ScoreThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/checkup
log:
  level: debug
  format: console
server:
  port: 9090
retrieval:
  knowledge_k: 8
llm:
  provider: anthropic
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/checkup", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Retrieval.KnowledgeK)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Retrieval.ProfileK)
	assert.Equal(t, "medical_knowledge", cfg.Milvus.KnowledgeCollection)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHECKUP_STORE_DRIVER", "postgres")
	t.Setenv("CHECKUP_LLM_PROVIDER", "anthropic")
	t.Setenv("CHECKUP_SERVER_PORT", "9001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
