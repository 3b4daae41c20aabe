package rpm

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valkey-insight/vkpack/pkg/config"
	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

const specTmpl = `Name:           {{.name}}
Version:        {{.version}}
Release:        {{.release}}
BuildArch:      {{.rpmArch}}
`
const desktopTmpl = "[Desktop Entry]\nName={{.product}}\n"

// fakeRPMBuild simulates rpmbuild dropping the package under RPMS/.
type fakeRPMBuild struct {
	fs    afero.Fs
	calls int
	spec  string
	fail  bool
}

func (r *fakeRPMBuild) Run(_ context.Context, tool toolchain.Tool, args ...string) error {
	r.calls++
	if r.fail {
		return assert.AnError
	}
	specPath := args[len(args)-1]
	content, err := afero.ReadFile(r.fs, specPath)
	if err != nil {
		return err
	}
	r.spec = string(content)
	var topdir string
	for i, arg := range args {
		if arg == "--define" && strings.HasPrefix(args[i+1], "_topdir ") {
			topdir = strings.TrimPrefix(args[i+1], "_topdir ")
		}
	}
	return afero.WriteFile(r.fs,
		topdir+"/RPMS/x86_64/valkey-insight-1.2.3-1.x86_64.rpm", []byte("rpm"), 0644)
}

func (r *fakeRPMBuild) Output(_ context.Context, _ toolchain.Tool, _ ...string) (string, error) {
	return "", nil
}

func testBuild(t *testing.T, fs afero.Fs) (*dist.Build, *fakeRPMBuild) {
	t.Helper()
	runner := &fakeRPMBuild{fs: fs}
	b := &dist.Build{
		Project: &config.Project{
			Product:    "Valkey Insight",
			Name:       "valkey-insight",
			Binary:     "valkey_insight",
			AppID:      "org.valkey.Insight",
			Maintainer: "Dev <dev@example.org>",
			Arch:       "amd64",
			Release:    "1",
		},
		Version:    "1.2.3",
		ProjectDir: "/proj",
		OutputDir:  "/proj/dist",
		ScratchDir: "/tmp/vkpack",
		Fs:         fs,
		Log:        zap.NewNop().Sugar(),
		Runner:     runner,
		Lookup: func(name string) (toolchain.Tool, error) {
			return toolchain.Tool{Name: name, Path: "/usr/bin/" + name}, nil
		},
		Template: func(name string) (string, error) {
			switch name {
			case "app.spec.tmpl":
				return specTmpl, nil
			case "app.desktop.tmpl":
				return desktopTmpl, nil
			}
			return "", assert.AnError
		},
	}
	return b, runner
}

func TestBuildProducesArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/target/release/valkey_insight", []byte("elf"), 0755))
	b, runner := testBuild(t, fs)

	artifact, err := Build(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "/proj/dist/valkey-insight-1.2.3-1.x86_64.rpm", artifact)
	assert.Equal(t, 1, runner.calls)

	content, err := afero.ReadFile(fs, artifact)
	require.NoError(t, err)
	assert.Equal(t, "rpm", string(content))

	// Spec file carried the manifest version byte for byte.
	assert.Contains(t, runner.spec, "Version:        1.2.3\n")

	exists, err := afero.Exists(fs, "/tmp/vkpack/rpmbuild")
	require.NoError(t, err)
	assert.False(t, exists, "staging tree removed after success")
}

func TestBuildRefusesExistingArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/target/release/valkey_insight", []byte("elf"), 0755))
	require.NoError(t, afero.WriteFile(fs, "/proj/dist/valkey-insight-1.2.3-1.x86_64.rpm", []byte("old"), 0644))
	b, runner := testBuild(t, fs)

	_, err := Build(context.Background(), b)
	assert.ErrorIs(t, err, dist.ErrArtifactExists)
	assert.Zero(t, runner.calls)
}

func TestBuildRollsBackOnToolFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/target/release/valkey_insight", []byte("elf"), 0755))
	b, runner := testBuild(t, fs)
	runner.fail = true

	_, err := Build(context.Background(), b)
	require.Error(t, err)

	// The source tarball and the top dirs are written into the staging
	// tree before rpmbuild runs; none of it may survive the failure.
	exists, statErr := afero.Exists(fs, "/tmp/vkpack/rpmbuild/SOURCES/valkey-insight-1.2.3.tar.gz")
	require.NoError(t, statErr)
	assert.False(t, exists, "source tarball swept up by the rollback")

	exists, statErr = afero.Exists(fs, "/tmp/vkpack/rpmbuild")
	require.NoError(t, statErr)
	assert.False(t, exists, "no staging residue after a tool failure")
}

func TestBuildMissingTemplateFailsBeforeStaging(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/target/release/valkey_insight", []byte("elf"), 0755))
	b, runner := testBuild(t, fs)
	b.Template = func(string) (string, error) { return "", assert.AnError }

	_, err := Build(context.Background(), b)
	require.Error(t, err)
	assert.Zero(t, runner.calls)

	exists, statErr := afero.Exists(fs, "/tmp/vkpack")
	require.NoError(t, statErr)
	assert.False(t, exists)
}
