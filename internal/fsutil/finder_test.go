package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cashgrid/internal/testutil"
)

func TestFindFilesByExtension(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"b.hcl":             "",
		"a.hcl":             "",
		"sub/c.hcl":         "",
		"sub/notes.txt":     "",
		".git/config.hcl":   "",
		"_out/result.hcl":   "",
		"sub/.hidden/x.hcl": "",
	})

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.hcl"),
		filepath.Join(dir, "b.hcl"),
		filepath.Join(dir, "sub", "c.hcl"),
	}, files)
}

func TestFindFilesByExtensionMissingRoot(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "missing"), ".hcl")
	assert.Error(t, err)
}

func TestFindFilesByExtensionPanicsOnEmptyExtension(t *testing.T) {
	assert.Panics(t, func() { _, _ = FindFilesByExtension(t.TempDir(), "") })
}
