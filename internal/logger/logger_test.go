package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		cfg := Config{
			Level:   "info",
			Console: true,
			Pretty:  false,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)

		logger.Close()
	})

	t.Run("create logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")

		cfg := Config{
			Level:   "debug",
			File:    logFile,
			Console: false,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)

		logger.Info().Msg("test message")
		logger.Close()

		// Verify file was created
		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		cfg := Config{
			Level:   "not-a-level",
			Console: true,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())

		logger.Close()
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
}
