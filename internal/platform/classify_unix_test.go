//go:build unix

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCharDevice(t *testing.T) {
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	st, err := Classify(f)
	require.NoError(t, err)
	assert.Equal(t, CharDevice, st.Kind)
	assert.Nil(t, st.Identity)
}

func TestClassifyIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	other := filepath.Join(dir, "g")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	w, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	defer w.Close()
	g, err := os.Open(other)
	require.NoError(t, err)
	defer g.Close()

	rs, err := Classify(r)
	require.NoError(t, err)
	ws, err := Classify(w)
	require.NoError(t, err)
	gs, err := Classify(g)
	require.NoError(t, err)

	require.NotNil(t, rs.Identity)
	assert.True(t, rs.SameFile(ws), "two descriptors on one inode share identity")
	assert.False(t, rs.SameFile(gs))
}
