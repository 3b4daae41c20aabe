// Package dist holds what all package format builders share: the build
// context, artifact naming per format convention, and the guard against
// overwriting an already produced artifact.
package dist

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/valkey-insight/vkpack/pkg/config"
	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/resources"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

// ErrArtifactExists is returned when the output package for the current
// version is already present. The existing artifact is left untouched.
var ErrArtifactExists = errors.New("artifact already exists")

// Runner abstracts toolchain.Runner so builders can be exercised
// without the real packaging tools installed.
type Runner interface {
	Run(ctx context.Context, tool toolchain.Tool, args ...string) error
	Output(ctx context.Context, tool toolchain.Tool, args ...string) (string, error)
}

// Build is the context a format builder works in.
type Build struct {
	Project    *config.Project
	Version    string
	ProjectDir string
	OutputDir  string
	ScratchDir string

	Fs     afero.Fs
	Log    *zap.SugaredLogger
	Runner Runner
	Lookup func(name string) (toolchain.Tool, error)
	// Template resolves a template by name, either a project-local
	// override from <project>/packaging/ or the embedded default.
	Template func(name string) (string, error)
}

// New assembles a Build against the real filesystem and toolchain.
func New(project *config.Project, version, projectDir string, log *zap.SugaredLogger) *Build {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	fs := afero.NewOsFs()
	b := &Build{
		Project:    project,
		Version:    version,
		ProjectDir: projectDir,
		OutputDir:  filepath.Join(projectDir, project.OutputDir),
		ScratchDir: filepath.Join(os.TempDir(), "vkpack"),
		Fs:         fs,
		Log:        log,
		Runner:     toolchain.NewRunner(projectDir, log),
		Lookup:     toolchain.Lookup,
	}
	b.Template = func(name string) (string, error) {
		override := filepath.Join(projectDir, "packaging", name)
		if ok, _ := afero.Exists(fs, override); ok {
			content, err := afero.ReadFile(fs, override)
			return string(content), err
		}
		return resources.Template(name)
	}
	return b
}

// Vars returns the template variables shared by all package formats.
func (b *Build) Vars() expand.StringMap {
	p := b.Project
	return expand.StringMap{
		"name":        p.Name,
		"product":     p.Product,
		"binary":      p.Binary,
		"appID":       p.AppID,
		"version":     b.Version,
		"release":     p.Release,
		"arch":        p.Arch,
		"rpmArch":     p.RPMArch(),
		"maintainer":  p.Maintainer,
		"homepage":    p.Homepage,
		"summary":     p.Summary,
		"description": p.Description,
		"license":     p.License,
	}
}

// BinaryPath is the release binary produced by the Linux build.
func (b *Build) BinaryPath() string {
	return filepath.Join(b.ProjectDir, "target", "release", b.Project.Binary)
}

// WindowsBinaryPath is the cross-compiled Windows executable.
func (b *Build) WindowsBinaryPath() string {
	return filepath.Join(b.ProjectDir, "target", b.Project.WindowsTarget, "release", b.Project.Binary+".exe")
}

// Compile runs a configured build command (e.g. "cargo build --release")
// in the project directory.
func (b *Build) Compile(ctx context.Context, command []string) error {
	if len(command) == 0 {
		return errors.New("empty build command")
	}
	tool, err := b.Lookup(command[0])
	if err != nil {
		return err
	}
	return b.Runner.Run(ctx, tool, command[1:]...)
}

// EnsureAbsent fails when the output artifact for this version already
// exists, before anything else happens.
func EnsureAbsent(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return errors.Wrapf(err, "check %s", path)
	}
	if exists {
		return errors.Wrapf(ErrArtifactExists, "%s", path)
	}
	return nil
}

// Artifact filenames follow each format's naming convention, with the
// manifest version in the conventional position.

func DebFileName(name, version, arch string) string {
	return fmt.Sprintf("%s_%s_%s.deb", name, version, arch)
}

func RPMFileName(name, version, release, rpmArch string) string {
	return fmt.Sprintf("%s-%s-%s.%s.rpm", name, version, release, rpmArch)
}

func FlatpakFileName(name, version string) string {
	return fmt.Sprintf("%s-%s.flatpak", name, version)
}

func SetupExeFileName(name, version string) string {
	return fmt.Sprintf("%s-%s-setup.exe", name, version)
}

func SourceTarballName(name, version string) string {
	return fmt.Sprintf("%s-%s.tar.gz", name, version)
}

// TarGz packs srcDir into a gzipped tarball at outPath. Entries are
// placed under prefix, the leading directory the unpacking side expects.
// exclude (optional) skips matching top-level entries.
func (b *Build) TarGz(srcDir, prefix, outPath string, exclude func(rel string) bool) error {
	out, err := b.Fs.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "create tarball %s", outPath)
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	err = afero.Walk(b.Fs, srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if exclude != nil && exclude(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		hdr := &tar.Header{
			Name:    path.Join(prefix, rel),
			Mode:    int64(info.Mode().Perm()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if info.IsDir() {
			hdr.Typeflag = tar.TypeDir
			hdr.Name += "/"
			hdr.Size = 0
			return tw.WriteHeader(hdr)
		}
		hdr.Typeflag = tar.TypeReg
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := b.Fs.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	return errors.Wrapf(err, "pack %s", outPath)
}

// CopyFile copies a finished artifact out of the scratch area.
func (b *Build) CopyFile(src, dst string) error {
	in, err := b.Fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "copy %s", src)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "copy %s", src)
	}
	out, err := b.Fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "copy to %s", dst)
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return errors.Wrapf(err, "copy to %s", dst)
}
