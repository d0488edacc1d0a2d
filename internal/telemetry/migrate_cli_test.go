package telemetry

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrateCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cli.db")
	var out bytes.Buffer

	require.NoError(t, RunMigrateCommand(&out, []string{"status"}, path))
	assert.Contains(t, out.String(), "Current version: 0")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"up"}, path))
	assert.Contains(t, out.String(), "Current version: 3 (dirty: false)")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"down"}, path))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"force", "3"}, path))
	assert.Contains(t, out.String(), "Current version: 3")

	out.Reset()
	assert.Error(t, RunMigrateCommand(&out, nil, path))
	assert.Contains(t, out.String(), "Usage: migrate")
	assert.Error(t, RunMigrateCommand(&out, []string{"sideways"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"force", "x"}, path))
	require.NoError(t, RunMigrateCommand(&out, []string{"help"}, path))
}
