package stage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeWriteAndCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/app", []byte("binary"), 0755))

	tree, err := New(fs, "/scratch/deb/valkey-insight_1.2.3", nil)
	require.NoError(t, err)

	require.NoError(t, tree.WriteFile("DEBIAN/control", []byte("Package: valkey-insight\n"), 0644))
	require.NoError(t, tree.CopyFile("/src/app", "usr/bin/app", 0755))

	content, err := afero.ReadFile(fs, tree.Path("DEBIAN", "control"))
	require.NoError(t, err)
	assert.Equal(t, "Package: valkey-insight\n", string(content))

	content, err = afero.ReadFile(fs, tree.Path("usr", "bin", "app"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(content))
}

func TestTreeCopyTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/res/icons/app.png", []byte("png"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/res/app.desktop", []byte("desktop"), 0644))

	tree, err := New(fs, "/scratch/tree", nil)
	require.NoError(t, err)
	require.NoError(t, tree.CopyTree("/res", "usr/share/valkey_insight"))

	exists, err := afero.Exists(fs, tree.Path("usr", "share", "valkey_insight", "icons", "app.png"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTreeRollbackRemovesOnlyCreatedEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/scratch", 0755))
	require.NoError(t, afero.WriteFile(fs, "/scratch/keep.txt", []byte("keep"), 0644))

	tree, err := New(fs, "/scratch/build", nil)
	require.NoError(t, err)
	require.NoError(t, tree.WriteFile("a/b/file.txt", []byte("x"), 0644))

	tree.Rollback()

	exists, err := afero.Exists(fs, "/scratch/build")
	require.NoError(t, err)
	assert.False(t, exists, "created staging root should be gone")

	exists, err = afero.Exists(fs, "/scratch/keep.txt")
	require.NoError(t, err)
	assert.True(t, exists, "pre-existing files must survive a rollback")
}

func TestTreeRollbackRemovesToolOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	tree, err := New(fs, "/scratch/rpmbuild", nil)
	require.NoError(t, err)
	require.NoError(t, tree.MkdirAll("SOURCES", 0755))

	// A packaging tool writing into the tree does not go through the
	// created ledger.
	require.NoError(t, afero.WriteFile(fs, tree.Path("SOURCES", "src.tar.gz"), []byte("tgz"), 0644))
	require.NoError(t, afero.WriteFile(fs, tree.Path("RPMS", "x86_64", "out.rpm"), []byte("rpm"), 0644))

	tree.Rollback()

	exists, err := afero.Exists(fs, "/scratch/rpmbuild")
	require.NoError(t, err)
	assert.False(t, exists, "rollback must sweep up tool output with the root")

	exists, err = afero.Exists(fs, "/scratch")
	require.NoError(t, err)
	assert.False(t, exists, "created parents of the root are removed too")
}

func TestTreeRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	tree, err := New(fs, "/scratch/build", nil)
	require.NoError(t, err)
	require.NoError(t, tree.WriteFile("file", []byte("x"), 0644))
	require.NoError(t, tree.Remove())

	exists, err := afero.Exists(fs, "/scratch/build")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRequire(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/have", nil, 0644))

	assert.NoError(t, Require(fs, "/have"))
	err := Require(fs, "/have", "/missing")
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), "/missing")
}
