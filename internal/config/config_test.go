package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"localrag-test"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoadDefaults(t *testing.T) {
	setArgs(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, "models", cfg.ModelDir)
	assert.Equal(t, "rag_docs", cfg.DocsDir)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.RuntimeURL)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Runs)
	assert.Equal(t, []int{4, 6, 8, 10, 12}, cfg.ThreadsList)
}

func TestLoadFlagsOverride(t *testing.T) {
	setArgs(t, "--port", "8080", "--threads", "12", "--model", "/tmp/custom.gguf", "--provider", "stub")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 12, cfg.Threads)
	assert.Equal(t, "/tmp/custom.gguf", cfg.Model)
	assert.Equal(t, "stub", cfg.Provider)
}

func TestLoadEnvOverride(t *testing.T) {
	setArgs(t)
	t.Setenv("LOCALRAG_PORT", "9000")
	t.Setenv("LOCALRAG_DOCS_DIR", "/srv/docs")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/srv/docs", cfg.DocsDir)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	setArgs(t, "--port", "7777")
	t.Setenv("LOCALRAG_PORT", "9000")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
}

func TestLoadYAML(t *testing.T) {
	setArgs(t)
	path := filepath.Join(t.TempDir(), "localrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 6001\nthreads: 10\ndocsDir: docs\n"), 0o644))
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 6001, cfg.Port)
	assert.Equal(t, 10, cfg.Threads)
	assert.Equal(t, "docs", cfg.DocsDir)
}

func TestLoadMissingConfigFile(t *testing.T) {
	setArgs(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load("/nonexistent/localrag.yaml", fs)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidThreads(t *testing.T) {
	setArgs(t, "--threads", "0")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	_, err := Load("", fs)
	assert.Error(t, err)
}

func TestModelPath(t *testing.T) {
	cfg := Specification{ModelDir: "models"}
	assert.Equal(t, filepath.Join("models", DefaultModelFile), cfg.ModelPath())
	assert.Equal(t, DefaultModelFile, cfg.ModelName())

	cfg.Model = "/opt/llm/other.gguf"
	assert.Equal(t, "/opt/llm/other.gguf", cfg.ModelPath())
	assert.Equal(t, "other.gguf", cfg.ModelName())
}

func TestSetThreadEnv(t *testing.T) {
	for _, key := range []string{"OMP_NUM_THREADS", "MKL_NUM_THREADS", "OPENBLAS_NUM_THREADS", "NUMEXPR_NUM_THREADS"} {
		t.Setenv(key, "")
	}

	SetThreadEnv(10)

	for _, key := range []string{"OMP_NUM_THREADS", "MKL_NUM_THREADS", "OPENBLAS_NUM_THREADS", "NUMEXPR_NUM_THREADS"} {
		assert.Equal(t, "10", os.Getenv(key))
	}
}
