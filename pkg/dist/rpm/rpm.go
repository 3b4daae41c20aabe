// Package rpm builds the RPM package: an rpmbuild working tree with an
// expanded spec file and a source tarball, archived by rpmbuild.
package rpm

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/stage"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

var topDirs = []string{"BUILD", "RPMS", "SOURCES", "SPECS", "SRPMS"}

// Build produces <output>/<name>-<version>-<release>.<rpmarch>.rpm and
// returns its path.
func Build(ctx context.Context, b *dist.Build) (string, error) {
	rpmbuild, err := b.Lookup("rpmbuild")
	if err != nil {
		return "", err
	}
	p := b.Project
	rpmName := dist.RPMFileName(p.Name, b.Version, p.Release, p.RPMArch())
	artifact := filepath.Join(b.OutputDir, rpmName)
	if err := dist.EnsureAbsent(b.Fs, artifact); err != nil {
		return "", err
	}
	specTmpl, err := b.Template("app.spec.tmpl")
	if err != nil {
		return "", err
	}
	desktopTmpl, err := b.Template("app.desktop.tmpl")
	if err != nil {
		return "", err
	}
	if err := stage.Require(b.Fs, b.BinaryPath()); err != nil {
		return "", err
	}

	tree, err := stage.New(b.Fs, filepath.Join(b.ScratchDir, "rpmbuild"), b.Log)
	if err != nil {
		return "", err
	}
	built, err := build(ctx, b, tree, rpmbuild, specTmpl, desktopTmpl, rpmName, artifact)
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
	rpmbuild toolchain.Tool, specTmpl, desktopTmpl, rpmName, artifact string,
) (string, error) {
	p := b.Project
	for _, dir := range topDirs {
		if err := tree.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	// The install tree that %install copies into the buildroot.
	sourceRoot := fmt.Sprintf("%s-%s", p.Name, b.Version)
	payload := filepath.Join("payload", sourceRoot)
	if err := tree.CopyFile(b.BinaryPath(), filepath.Join(payload, "usr", "bin", p.Binary), 0755); err != nil {
		return "", err
	}
	desktop, err := expand.Expand(desktopTmpl, b.Vars())
	if err != nil {
		return "", err
	}
	desktopPath := filepath.Join(payload, "usr", "share", "applications", p.Name+".desktop")
	if err := tree.WriteFile(desktopPath, []byte(desktop), 0644); err != nil {
		return "", err
	}
	icon := filepath.Join(b.ProjectDir, p.ResourcesDir, p.Binary+".png")
	if ok, _ := afero.Exists(b.Fs, icon); ok {
		iconPath := filepath.Join(payload, "usr", "share", "icons", "hicolor", "256x256", "apps", p.Binary+".png")
		if err := tree.CopyFile(icon, iconPath, 0644); err != nil {
			return "", err
		}
	}
	commands := filepath.Join(b.ProjectDir, p.CommandsDir)
	if ok, _ := afero.DirExists(b.Fs, commands); ok {
		commandsPath := filepath.Join(payload, "usr", "share", "valkey_insight", "commands")
		if err := tree.CopyTree(commands, commandsPath); err != nil {
			return "", err
		}
	}

	tarball := tree.Path("SOURCES", dist.SourceTarballName(p.Name, b.Version))
	if err := b.TarGz(tree.Path(payload), sourceRoot, tarball, nil); err != nil {
		return "", err
	}

	spec, err := expand.Expand(specTmpl, b.Vars())
	if err != nil {
		return "", err
	}
	specPath := filepath.Join("SPECS", p.Name+".spec")
	if err := tree.WriteFile(specPath, []byte(spec), 0644); err != nil {
		return "", err
	}

	if err := b.Fs.MkdirAll(b.OutputDir, 0755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	err = b.Runner.Run(ctx, rpmbuild,
		"-bb",
		"--define", fmt.Sprintf("_topdir %s", tree.Root()),
		"--target", p.RPMArch(),
		tree.Path(specPath),
	)
	if err != nil {
		return "", err
	}

	// rpmbuild leaves the package under RPMS/<arch>/; move it out.
	built := tree.Path("RPMS", p.RPMArch(), rpmName)
	if err := stage.Require(b.Fs, built); err != nil {
		return "", errors.Wrap(err, "rpmbuild did not produce the expected package")
	}
	if err := b.CopyFile(built, artifact); err != nil {
		return "", err
	}
	return artifact, nil
}
