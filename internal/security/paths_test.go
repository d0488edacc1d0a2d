package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	safe := filepath.Join(root, "safe")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	link := filepath.Join(safe, "escape")
	require.NoError(t, os.Symlink(outside, link))

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"plain file", filepath.Join(safe, "plot.png"), true},
		{"missing nested dirs", filepath.Join(safe, "a", "b", "plot.png"), true},
		{"dot dot", filepath.Join(safe, "..", "plot.png"), false},
		{"absolute elsewhere", "/etc/passwd", false},
		{"through symlink", filepath.Join(link, "plot.png"), false},
		{"symlink itself", link, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := WithinDir(tt.path, safe)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOutsideDir)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateOutputPath(filepath.Join(os.TempDir(), "session.png")))
	assert.NoError(t, ValidateOutputPath("session.png"))
	assert.ErrorIs(t, ValidateOutputPath("/proc/self/plot.png"), ErrOutsideDir)
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hallway_run_2", SafeFileName("hallway run #2"))
	assert.Equal(t, "a-b.c", SafeFileName("..a-b.c__"))
	assert.Equal(t, "session", SafeFileName("///"))
	assert.Equal(t, "session", SafeFileName(""))
	assert.Len(t, SafeFileName(strings.Repeat("a", 200)), 96)
}
