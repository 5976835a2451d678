package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("PERMUTEX_PROFILE replaces the profile kind", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PERMUTEX_PROFILE", "max")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "max", cfg.Profile.Kind)
	})

	t.Run("PERMUTEX_WORKERS sets a positive worker count", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PERMUTEX_WORKERS", "6")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 6, cfg.Profile.Workers)
	})

	t.Run("PERMUTEX_WORKERS ignores garbage", func(t *testing.T) {
		clearEnv(t)
		for _, v := range []string{"many", "0", "-2"} {
			t.Setenv("PERMUTEX_WORKERS", v)
			cfg := &Config{Profile: ProfileConfig{Workers: 3}}
			cfg.applyEnvOverrides()
			assert.Equal(t, 3, cfg.Profile.Workers, v)
		}
	})

	t.Run("paths and log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PERMUTEX_WORK_DIR", "/tmp/run")
		t.Setenv("PERMUTEX_OUTPUT", "/tmp/out.txt")
		t.Setenv("PERMUTEX_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/run", cfg.Output.WorkDir)
		assert.Equal(t, "/tmp/out.txt", cfg.Output.Path)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, filepath.Join("/tmp/run", DedupFileName), cfg.DedupPath())
	})

	t.Run("empty values leave the file's settings", func(t *testing.T) {
		clearEnv(t)
		cfg := &Config{Output: OutputConfig{WorkDir: "keep"}}
		cfg.applyEnvOverrides()
		assert.Equal(t, "keep", cfg.Output.WorkDir)
	})
}

func TestEnvOverrides_AppliedByLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERMUTEX_PROFILE", "power_saver")

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.yaml")
		require.NoError(t, os.WriteFile(path, []byte("profile:\n  kind: max\n"), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "power_saver", cfg.Profile.Kind, "environment wins over the file")
	})

	t.Run("missing file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "power_saver", cfg.Profile.Kind)
	})
}
