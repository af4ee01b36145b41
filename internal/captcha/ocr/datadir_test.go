package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDataDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "eng.traineddata")
	require.NoError(t, os.WriteFile(file, []byte("model"), 0o644))

	assert.NoError(t, CheckDataDir(""))
	assert.NoError(t, CheckDataDir(dir))

	err := CheckDataDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "missing")

	assert.ErrorIs(t, CheckDataDir(file), ErrEngineUnavailable)
}
