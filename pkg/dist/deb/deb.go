// Package deb builds the Debian package: a DEBIAN staging tree with an
// expanded control file, archived by dpkg-deb.
package deb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/stage"
)

// Build produces <output>/<name>_<version>_<arch>.deb and returns its
// path. All preconditions (tool present, artifact absent, inputs and
// templates available) are checked before any staging happens.
func Build(ctx context.Context, b *dist.Build) (string, error) {
	dpkgDeb, err := b.Lookup("dpkg-deb")
	if err != nil {
		return "", err
	}
	artifact := filepath.Join(b.OutputDir, dist.DebFileName(b.Project.Name, b.Version, b.Project.Arch))
	if err := dist.EnsureAbsent(b.Fs, artifact); err != nil {
		return "", err
	}
	controlTmpl, err := b.Template("control.tmpl")
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

	treeName := fmt.Sprintf("%s_%s_%s", b.Project.Name, b.Version, b.Project.Arch)
	tree, err := stage.New(b.Fs, filepath.Join(b.ScratchDir, "deb", treeName), b.Log)
	if err != nil {
		return "", err
	}
	if err := fill(b, tree, controlTmpl, desktopTmpl); err != nil {
		tree.Rollback()
		return "", err
	}

	if err := b.Fs.MkdirAll(b.OutputDir, 0755); err != nil {
		tree.Rollback()
		return "", errors.Wrap(err, "create output dir")
	}
	if err := b.Runner.Run(ctx, dpkgDeb, "--build", "--root-owner-group", tree.Root(), artifact); err != nil {
		tree.Rollback()
		return "", err
	}
	if err := tree.Remove(); err != nil {
		b.Log.Warnw("cannot remove staging dir", "error", err)
	}
	return artifact, nil
}

// fill stages the package contents and writes the control file.
func fill(b *dist.Build, tree *stage.Tree, controlTmpl, desktopTmpl string) error {
	if err := tree.CopyFile(b.BinaryPath(), filepath.Join("usr", "bin", b.Project.Binary), 0755); err != nil {
		return err
	}

	desktop, err := expand.Expand(desktopTmpl, b.Vars())
	if err != nil {
		return err
	}
	desktopPath := filepath.Join("usr", "share", "applications", b.Project.Name+".desktop")
	if err := tree.WriteFile(desktopPath, []byte(desktop), 0644); err != nil {
		return err
	}

	icon := filepath.Join(b.ProjectDir, b.Project.ResourcesDir, b.Project.Binary+".png")
	if ok, _ := afero.Exists(b.Fs, icon); ok {
		iconPath := filepath.Join("usr", "share", "icons", "hicolor", "256x256", "apps", b.Project.Binary+".png")
		if err := tree.CopyFile(icon, iconPath, 0644); err != nil {
			return err
		}
	}

	commands := filepath.Join(b.ProjectDir, b.Project.CommandsDir)
	if ok, _ := afero.DirExists(b.Fs, commands); ok {
		if err := tree.CopyTree(commands, filepath.Join("usr", "share", "valkey_insight", "commands")); err != nil {
			return err
		}
	}

	size, err := installedSize(b.Fs, tree.Root())
	if err != nil {
		return err
	}
	control, err := expand.Expand(controlTmpl, expand.Merge(b.Vars(), expand.StringMap{
		"installedSize": fmt.Sprintf("%d", size),
	}))
	if err != nil {
		return err
	}
	return tree.WriteFile(filepath.Join("DEBIAN", "control"), []byte(control), 0644)
}

// installedSize is the staged payload size in KiB, as the control file
// field wants it.
func installedSize(fs afero.Fs, root string) (int64, error) {
	var bytes int64
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			bytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "compute installed size")
	}
	return (bytes + 1023) / 1024, nil
}
