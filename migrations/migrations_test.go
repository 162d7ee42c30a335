package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_UpAndDownPairs(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(FS, "*.down.sql")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_create_search_analytics.up.sql",
		"000002_create_search_history.up.sql",
	}, ups)
	assert.Len(t, downs, len(ups))
}
