package dist

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactFileNames(t *testing.T) {
	assert.Equal(t, "valkey-insight_1.2.3_amd64.deb", DebFileName("valkey-insight", "1.2.3", "amd64"))
	assert.Equal(t, "valkey-insight-1.2.3-1.x86_64.rpm", RPMFileName("valkey-insight", "1.2.3", "1", "x86_64"))
	assert.Equal(t, "valkey-insight-1.2.3.flatpak", FlatpakFileName("valkey-insight", "1.2.3"))
	assert.Equal(t, "valkey-insight-1.2.3-setup.exe", SetupExeFileName("valkey-insight", "1.2.3"))
	assert.Equal(t, "valkey-insight-1.2.3.tar.gz", SourceTarballName("valkey-insight", "1.2.3"))
}

func TestEnsureAbsent(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.NoError(t, EnsureAbsent(fs, "/out/app_1.2.3_amd64.deb"))

	require.NoError(t, afero.WriteFile(fs, "/out/app_1.2.3_amd64.deb", []byte("deb"), 0644))
	err := EnsureAbsent(fs, "/out/app_1.2.3_amd64.deb")
	assert.ErrorIs(t, err, ErrArtifactExists)

	// The existing artifact is untouched.
	content, readErr := afero.ReadFile(fs, "/out/app_1.2.3_amd64.deb")
	require.NoError(t, readErr)
	assert.Equal(t, "deb", string(content))
}

func TestTarGz(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/src/main.rs", []byte("fn main() {}"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/Cargo.toml", []byte("[package]"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/target/release/bin", []byte("elf"), 0755))

	b := &Build{Fs: fs}
	require.NoError(t, b.TarGz("/proj", "app-1.2.3", "/scratch.tar.gz", func(rel string) bool {
		return rel == "target"
	}))

	f, err := fs.Open("/scratch.tar.gz")
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	assert.Contains(t, names, "app-1.2.3/Cargo.toml")
	assert.Contains(t, names, "app-1.2.3/src/main.rs")
	for _, name := range names {
		assert.NotContains(t, name, "target")
	}
}
