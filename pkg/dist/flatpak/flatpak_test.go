package flatpak

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valkey-insight/vkpack/pkg/config"
	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

const manifestTmpl = `app-id: {{.appID}}
command: {{.binary}}
modules:
  - name: {{.name}}
    sources:
      - type: archive
        path: {{.tarball}}
      - type: file
        path: {{.generatedSources}}
`

type call struct {
	tool string
	args []string
}

type fakeRunner struct {
	fs     afero.Fs
	calls  []call
	failOn string
}

func (r *fakeRunner) Run(_ context.Context, tool toolchain.Tool, args ...string) error {
	r.calls = append(r.calls, call{tool: tool.Name, args: args})
	if tool.Name == r.failOn {
		return assert.AnError
	}
	if tool.Name == "python3" && len(args) > 2 {
		// <generator> <lockfile> -o <out>
		return afero.WriteFile(r.fs, args[len(args)-1], []byte("[]"), 0644)
	}
	if tool.Name == "flatpak" && len(args) > 2 {
		// build-bundle <repo> <artifact> <appid>
		return afero.WriteFile(r.fs, args[2], []byte("flatpak"), 0644)
	}
	return nil
}

func (r *fakeRunner) Output(_ context.Context, _ toolchain.Tool, _ ...string) (string, error) {
	return "", nil
}

func testBuild(t *testing.T, fs afero.Fs) (*dist.Build, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{fs: fs}
	project := &config.Project{
		Product:         "Valkey Insight",
		Name:            "valkey-insight",
		Binary:          "valkey_insight",
		AppID:           "org.valkey.Insight",
		Maintainer:      "Dev <dev@example.org>",
		Arch:            "amd64",
		Release:         "1",
		OutputDir:       "dist",
		VendorCommand:   []string{"cargo", "vendor"},
		GeneratorScript: "flatpak-cargo-generator.py",
		GeneratorURL:    "http://invalid.example/generator.py",
	}
	b := &dist.Build{
		Project:    project,
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
			if name == "flatpak.yml.tmpl" {
				return manifestTmpl, nil
			}
			return "", assert.AnError
		},
	}
	return b, runner
}

func TestBuildProducesBundle(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/Cargo.lock", []byte("lock"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/src/main.rs", []byte("fn main() {}"), 0644))
	b, runner := testBuild(t, fs)

	restore := EnsureScript
	defer func() { EnsureScript = restore }()
	EnsureScript = func(_ context.Context, name, _, dir string) (string, error) {
		return dir + "/" + name, nil
	}

	artifact, err := Build(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "/proj/dist/valkey-insight-1.2.3.flatpak", artifact)

	var tools []string
	for _, c := range runner.calls {
		tools = append(tools, c.tool)
	}
	assert.Equal(t, []string{"cargo", "python3", "flatpak-builder", "flatpak"}, tools)

	// Bundle command addressed the app id parsed back from the manifest.
	last := runner.calls[len(runner.calls)-1]
	assert.Equal(t, "org.valkey.Insight", last.args[len(last.args)-1])
}

func TestBuildRefusesExistingBundle(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/Cargo.lock", []byte("lock"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/dist/valkey-insight-1.2.3.flatpak", []byte("old"), 0644))
	b, runner := testBuild(t, fs)

	_, err := Build(context.Background(), b)
	assert.ErrorIs(t, err, dist.ErrArtifactExists)
	assert.Empty(t, runner.calls)
}

func TestBuildRollsBackOnToolFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/Cargo.lock", []byte("lock"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/src/main.rs", []byte("fn main() {}"), 0644))
	b, runner := testBuild(t, fs)
	runner.failOn = "flatpak-builder"

	restore := EnsureScript
	defer func() { EnsureScript = restore }()
	EnsureScript = func(_ context.Context, name, _, dir string) (string, error) {
		return dir + "/" + name, nil
	}

	_, err := Build(context.Background(), b)
	require.Error(t, err)

	// The tarball and the generator output are in the tree by the time
	// flatpak-builder fails; the rollback must take them with the root.
	for _, leftover := range []string{
		"/tmp/vkpack/flatpak/valkey-insight-1.2.3.tar.gz",
		"/tmp/vkpack/flatpak/generated-sources.json",
		"/tmp/vkpack/flatpak",
	} {
		exists, statErr := afero.Exists(fs, leftover)
		require.NoError(t, statErr)
		assert.False(t, exists, leftover)
	}
}

func TestBuildMissingLockfileFailsEarly(t *testing.T) {
	fs := afero.NewMemMapFs()
	b, runner := testBuild(t, fs)

	_, err := Build(context.Background(), b)
	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestManifestAppID(t *testing.T) {
	id, err := manifestAppID("app-id: org.valkey.Insight\ncommand: x\n")
	require.NoError(t, err)
	assert.Equal(t, "org.valkey.Insight", id)

	id, err = manifestAppID("id: org.other.App\n")
	require.NoError(t, err)
	assert.Equal(t, "org.other.App", id)

	_, err = manifestAppID("command: x\n")
	assert.Error(t, err)

	_, err = manifestAppID(":\n\t- broken")
	assert.Error(t, err)
}
