package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	assert.Equal(t, "test", entry.Entry.Data["component"])
	assert.Equal(t, log.RunID(), entry.Entry.Data["run_id"])
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	assert.Error(t, log.Configure("invalid", "json", "stdout", 0))
	assert.Error(t, log.Configure("info", "xml", "stdout", 0))
}

func TestConfigureFileOutput(t *testing.T) {
	log := Logger()
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, log.Configure("debug", "text", path, 0))
	log.WithComponent("test").Debug("hello")
}

func TestConfigureClosesPreviousFile(t *testing.T) {
	log := Logger()
	dir := t.TempDir()

	require.NoError(t, log.Configure("info", "json", filepath.Join(dir, "first.log"), 0))
	first, ok := log.out.(*os.File)
	require.True(t, ok)

	require.NoError(t, log.Configure("info", "json", filepath.Join(dir, "second.log"), 0))
	_, err := first.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)

	second, ok := log.out.(*os.File)
	require.True(t, ok)
	log.WithComponent("test").Info("to second")

	require.NoError(t, log.Configure("info", "json", "stdout", 0))
	assert.Nil(t, log.out)
	_, err = second.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)

	data, err := os.ReadFile(filepath.Join(dir, "second.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to second")
}

func TestDataFlowFields(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithComponent("dataset").LogDataFlow("retail", "join", 42)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "data flow", line["message"])
	assert.Equal(t, "retail", line["source"])
	assert.EqualValues(t, 42, line["rows"])
	assert.Equal(t, "dataset", line["component"])
}
