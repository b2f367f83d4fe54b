package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTrees(t *testing.T) {
	for _, pattern := range TemplatePatterns {
		matches, err := fs.Glob(Templates(), pattern)
		require.NoError(t, err)
		assert.NotEmpty(t, matches, pattern)
	}

	static, err := Static()
	require.NoError(t, err)
	_, err = fs.Stat(static, "css/dojo.css")
	assert.NoError(t, err)
	_, err = fs.Stat(static, "img/avatar-placeholder.svg")
	assert.NoError(t, err)
}
