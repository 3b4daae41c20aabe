package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Cargo.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	path := writeManifest(t, `[package]
name = "valkey_insight"
version = "1.2.3"
edition = "2024"
`)
	version, err := Version(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", version)
}

func TestVersionWithPrereleaseSuffix(t *testing.T) {
	path := writeManifest(t, `[package]
version = "2.0.0-rc.1"
`)
	version, err := Version(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-rc.1", version)
}

func TestVersionIgnoresDependencySections(t *testing.T) {
	path := writeManifest(t, `[package]
name = "valkey_insight"

[dependencies.egui]
version = "0.31"
`)
	_, err := Version(path)
	assert.ErrorIs(t, err, ErrNoVersion)
}

func TestVersionMissingLine(t *testing.T) {
	path := writeManifest(t, `[package]
name = "valkey_insight"
`)
	_, err := Version(path)
	assert.ErrorIs(t, err, ErrNoVersion)
}

func TestVersionEmptyString(t *testing.T) {
	path := writeManifest(t, `[package]
version = ""
`)
	_, err := Version(path)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestVersionGarbage(t *testing.T) {
	path := writeManifest(t, `version = "not.a version"`)
	_, err := Version(path)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestVersionMissingFile(t *testing.T) {
	_, err := Version(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
