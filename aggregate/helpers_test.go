package aggregate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeBadRow(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("c.png,l.png,r.png,0.1,oops,0,0\n"), 0644))
}
