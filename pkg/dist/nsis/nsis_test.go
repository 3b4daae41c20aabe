package nsis

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

const scriptTmpl = `!define PRODUCT_NAME "{{.product}}"
!define PRODUCT_VERSION "{{.version}}"
OutFile "{{.outFile}}"
File "{{.binaryPath}}"
`

// fakeRunner simulates cargo producing the cross-compiled binary and
// makensis producing the installer named by the script's OutFile.
type fakeRunner struct {
	fs     afero.Fs
	tools  []string
	script string
}

func (r *fakeRunner) Run(_ context.Context, tool toolchain.Tool, args ...string) error {
	r.tools = append(r.tools, tool.Name)
	if tool.Name != "makensis" {
		return nil
	}
	content, err := afero.ReadFile(r.fs, args[len(args)-1])
	if err != nil {
		return err
	}
	r.script = string(content)
	for _, line := range strings.Split(r.script, "\n") {
		if rest, ok := strings.CutPrefix(line, `OutFile "`); ok {
			return afero.WriteFile(r.fs, strings.TrimSuffix(rest, `"`), []byte("exe"), 0644)
		}
	}
	return assert.AnError
}

func (r *fakeRunner) Output(_ context.Context, _ toolchain.Tool, _ ...string) (string, error) {
	return "", nil
}

func testBuild(t *testing.T, fs afero.Fs) (*dist.Build, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{fs: fs}
	b := &dist.Build{
		Project: &config.Project{
			Product:       "Valkey Insight",
			Name:          "valkey-insight",
			Binary:        "valkey_insight",
			AppID:         "org.valkey.Insight",
			Maintainer:    "Dev <dev@example.org>",
			Arch:          "amd64",
			Release:       "1",
			WindowsBuild:  []string{"cargo", "build", "--release", "--target", "x86_64-pc-windows-gnu"},
			WindowsTarget: "x86_64-pc-windows-gnu",
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
			if name == "installer.nsi.tmpl" {
				return scriptTmpl, nil
			}
			return "", assert.AnError
		},
	}
	return b, runner
}

func TestBuildProducesInstaller(t *testing.T) {
	fs := afero.NewMemMapFs()
	binary := "/proj/target/x86_64-pc-windows-gnu/release/valkey_insight.exe"
	require.NoError(t, afero.WriteFile(fs, binary, []byte("pe"), 0755))
	b, runner := testBuild(t, fs)

	artifact, err := Build(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "/proj/dist/valkey-insight-1.2.3-setup.exe", artifact)
	assert.Equal(t, []string{"cargo", "makensis"}, runner.tools)

	// The script carried the manifest version byte for byte and pointed
	// at the cross-compiled binary.
	assert.Contains(t, runner.script, `!define PRODUCT_VERSION "1.2.3"`)
	assert.Contains(t, runner.script, `File "`+binary+`"`)

	exists, err := afero.Exists(fs, "/tmp/vkpack/nsis")
	require.NoError(t, err)
	assert.False(t, exists, "staging tree removed after success")
}

func TestBuildRefusesExistingInstaller(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs,
		"/proj/dist/valkey-insight-1.2.3-setup.exe", []byte("old"), 0644))
	b, runner := testBuild(t, fs)

	_, err := Build(context.Background(), b)
	assert.ErrorIs(t, err, dist.ErrArtifactExists)
	assert.Empty(t, runner.tools)

	content, readErr := afero.ReadFile(fs, "/proj/dist/valkey-insight-1.2.3-setup.exe")
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(content), "existing installer untouched")
}

func TestBuildMissingBinaryAfterCompile(t *testing.T) {
	fs := afero.NewMemMapFs()
	b, runner := testBuild(t, fs)

	_, err := Build(context.Background(), b)
	require.Error(t, err)
	// The compile step ran but nothing produced the binary, so makensis
	// never did.
	assert.Equal(t, []string{"cargo"}, runner.tools)
}
