package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"next_selectors:\n  - \"a.custom-next\"\nmax_pages: 3\nexpected_programs:\n  - Summer Analyst Programme\n",
	), 0o644))

	h, err := LoadHints(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.custom-next"}, h.NextSelectors)
	assert.Equal(t, 3, h.MaxPages)
	assert.Equal(t, []string{"Summer Analyst Programme"}, h.ExpectedPrograms)
}

func TestLoadHints_EmptyPath(t *testing.T) {
	h, err := LoadHints("")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestLoadHints_MissingFile(t *testing.T) {
	_, err := LoadHints("/nonexistent/hints.yaml")
	require.Error(t, err)
}
