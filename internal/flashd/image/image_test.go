package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImageTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uboot.img"), []byte("uboot-default"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ce"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ce", "D200.img"), []byte("d200-default"), 0o644))
	return dir
}

func TestResolvePayload_FallsBackToLoadedFiles(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(writeImageTree(t)))

	b, ok := r.ResolvePayload(ClassUBoot, "MR500")
	require.True(t, ok)
	assert.Equal(t, "uboot-default", string(b))

	b, ok = r.ResolvePayload(ClassCE, "D200")
	require.True(t, ok)
	assert.Equal(t, "d200-default", string(b))
}

func TestApplyOverrides_TakesPriorityOverLoadedFiles(t *testing.T) {
	dir := writeImageTree(t)
	overridePath := filepath.Join(dir, "mr500-custom.bin")
	require.NoError(t, os.WriteFile(overridePath, []byte("uboot-override"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.Load(dir))
	require.NoError(t, r.ApplyOverrides([]Override{{Class: "MR500", Path: overridePath}}))

	b, ok := r.ResolvePayload(ClassUBoot, "mr500")
	require.True(t, ok)
	assert.Equal(t, "uboot-override", string(b))

	// D200 was not overridden and still resolves to the loaded file.
	b, ok = r.ResolvePayload(ClassCE, "D200")
	require.True(t, ok)
	assert.Equal(t, "d200-default", string(b))
}

func TestApplyOverrides_MissingFileErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(writeImageTree(t)))

	err := r.ApplyOverrides([]Override{{Class: "MR500", Path: "/nonexistent/path.bin"}})
	assert.Error(t, err)
}
