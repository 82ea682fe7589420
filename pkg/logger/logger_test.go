package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInDirSplitsErrors(t *testing.T) {
	dir := t.TempDir()
	log, err := NewInDir("debug", dir)
	require.NoError(t, err)

	log.Debug("intent created", "courseId", "c1")
	log.Error("webhook failed", "eventId", "evt_1")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), `"msg":"intent created"`)
	assert.Contains(t, string(info), `"msg":"webhook failed"`)

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "intent created")
	assert.Contains(t, string(errs), `"eventId":"evt_1"`)
}

func TestParseLevel(t *testing.T) {
	_, err := ParseLevel("verbose")
	assert.Error(t, err)

	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, "WARN", lvl.String())
}
