// Package nsis builds the Windows installer: the application is
// cross-compiled for the configured Windows target, the NSIS script
// template has its !define values filled in, and makensis assembles the
// setup executable.
package nsis

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/stage"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

// Build produces <output>/<name>-<version>-setup.exe and returns its
// path.
func Build(ctx context.Context, b *dist.Build) (string, error) {
	makensis, err := b.Lookup("makensis")
	if err != nil {
		return "", err
	}
	p := b.Project
	artifact := filepath.Join(b.OutputDir, dist.SetupExeFileName(p.Name, b.Version))
	if err := dist.EnsureAbsent(b.Fs, artifact); err != nil {
		return "", err
	}
	scriptTmpl, err := b.Template("installer.nsi.tmpl")
	if err != nil {
		return "", err
	}

	// Cross-compile first; the script template points at the produced
	// executable.
	if err := b.Compile(ctx, p.WindowsBuild); err != nil {
		return "", err
	}
	binary := b.WindowsBinaryPath()
	if err := stage.Require(b.Fs, binary); err != nil {
		return "", err
	}

	tree, err := stage.New(b.Fs, filepath.Join(b.ScratchDir, "nsis"), b.Log)
	if err != nil {
		return "", err
	}
	built, err := build(ctx, b, tree, makensis, scriptTmpl, binary, artifact)
	if err != nil {
		tree.Rollback()
		return "", err
	}
	if err := tree.Remove(); err != nil {
		b.Log.Warnw("cannot remove staging dir", "error", err)
	}
	return built, nil
}

func build(
	ctx context.Context, b *dist.Build, tree *stage.Tree,
	makensis toolchain.Tool, scriptTmpl, binary, artifact string,
) (string, error) {
	p := b.Project

	// The command documentation ships inside the installer when the
	// project has it.
	commands := filepath.Join(b.ProjectDir, p.CommandsDir)
	if ok, _ := afero.DirExists(b.Fs, commands); ok {
		if err := tree.CopyTree(commands, "commands"); err != nil {
			return "", err
		}
	}

	script, err := expand.Expand(scriptTmpl, expand.Merge(b.Vars(), expand.StringMap{
		"binaryPath": binary,
		"outFile":    artifact,
	}))
	if err != nil {
		return "", err
	}
	scriptPath := "installer.nsi"
	if err := tree.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return "", err
	}

	if err := b.Fs.MkdirAll(b.OutputDir, 0755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	if err := b.Runner.Run(ctx, makensis, "-V2", tree.Path(scriptPath)); err != nil {
		return "", err
	}
	if err := stage.Require(b.Fs, artifact); err != nil {
		return "", errors.Wrap(err, "makensis did not produce the expected installer")
	}
	return artifact, nil
}
