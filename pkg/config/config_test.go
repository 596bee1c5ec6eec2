package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid settings", func(t *testing.T) {
		data := []byte(`
problem:
  dimension: 4
  budget: 200
  num_workers: 2
  seed: 7
logging:
  level: DEBUG
  color: true
`)
		s, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, 4, s.Problem.Dimension)
		assert.Equal(t, 200, s.Problem.Budget)
		assert.Equal(t, 2, s.Problem.NumWorkers)
		assert.Equal(t, uint64(7), s.Problem.Seed)
		assert.Equal(t, "DEBUG", s.Logging.Level)
		assert.True(t, s.Logging.Color)
	})

	t.Run("defaults applied", func(t *testing.T) {
		s, err := Parse([]byte("problem:\n  dimension: 2\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, s.Problem.NumWorkers)
		assert.NotZero(t, s.Problem.Seed)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("problem: ["))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse settings")
	})

	t.Run("missing dimension", func(t *testing.T) {
		_, err := Parse([]byte("problem:\n  budget: 10\n"))
		require.Error(t, err)

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.Error(), "Dimension")
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := Parse([]byte("problem:\n  dimension: 2\nlogging:\n  level: chatty\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log level")
	})
}

func TestLoad(t *testing.T) {
	t.Run("round trip through a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.yaml")
		content := "problem:\n  dimension: 3\n  seed: 11\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, s.Problem.Dimension)
		assert.Equal(t, uint64(11), s.Problem.Seed)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read settings file")
	})
}

func TestBuildLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		s := LoggingSettings{Level: "WARN"}
		logger, err := s.BuildLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("with json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "entries.jsonl")
		s := LoggingSettings{JSONFile: path}

		logger, err := s.BuildLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)

		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "log file should be created eagerly")
	})

	t.Run("unwritable json file", func(t *testing.T) {
		s := LoggingSettings{JSONFile: filepath.Join(t.TempDir(), "no", "such", "dir.jsonl")}
		_, err := s.BuildLogger()
		require.Error(t, err)
	})
}
