package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, overrides map[string]any) string {
	t.Helper()

	dir := t.TempDir()
	cfg := map[string]any{
		"data_dir": dir,
		"db_path":  filepath.Join(dir, "test.db"),
		"logging": map[string]any{
			"level":   "error",
			"file":    filepath.Join(dir, "test.log"),
			"console": false,
		},
	}
	for k, v := range overrides {
		cfg[k] = v
	}

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestNew_WiresAllComponents(t *testing.T) {
	d, err := New(Options{ConfigPath: writeConfig(t, nil)})
	require.NoError(t, err)
	t.Cleanup(func() { d.store.Close() })

	assert.NotNil(t, d.store)
	assert.NotNil(t, d.dispatcher)
	assert.NotNil(t, d.server)
	assert.Equal(t, 10, d.cfg.Agent.MaxIterations)
	assert.Equal(t, 45, d.cfg.Agent.DefaultRemindAfterMinutes)
}

func TestNew_LogLevelOverride(t *testing.T) {
	d, err := New(Options{ConfigPath: writeConfig(t, nil), LogLevel: "debug"})
	require.NoError(t, err)
	t.Cleanup(func() { d.store.Close() })

	assert.Equal(t, "debug", d.cfg.Logging.Level)
}

func TestNew_RulePlannerNeedsNoAPIKey(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"planner": map[string]any{"provider": "rule"},
	})

	d, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { d.store.Close() })
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"planner": map[string]any{"provider": "homebrew"},
	})

	_, err := New(Options{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
