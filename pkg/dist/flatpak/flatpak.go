// Package flatpak builds the Flatpak bundle. Dependencies are vendored
// so the sandboxed build can run offline, the project source is packed
// into a tarball whose absolute path is substituted into the manifest,
// and flatpak-builder plus flatpak build-bundle produce the artifact.
package flatpak

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/stage"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

// EnsureScript is swapped out in tests; by default it resolves or
// downloads the source generator helper.
var EnsureScript = toolchain.EnsureScript

// Build produces <output>/<name>-<version>.flatpak and returns its path.
func Build(ctx context.Context, b *dist.Build) (string, error) {
	flatpakBuilder, err := b.Lookup("flatpak-builder")
	if err != nil {
		return "", err
	}
	flatpak, err := b.Lookup("flatpak")
	if err != nil {
		return "", err
	}
	p := b.Project
	artifact := filepath.Join(b.OutputDir, dist.FlatpakFileName(p.Name, b.Version))
	if err := dist.EnsureAbsent(b.Fs, artifact); err != nil {
		return "", err
	}
	manifestTmpl, err := b.Template("flatpak.yml.tmpl")
	if err != nil {
		return "", err
	}
	lockfile := filepath.Join(b.ProjectDir, "Cargo.lock")
	if err := stage.Require(b.Fs, lockfile); err != nil {
		return "", err
	}

	tree, err := stage.New(b.Fs, filepath.Join(b.ScratchDir, "flatpak"), b.Log)
	if err != nil {
		return "", err
	}
	built, err := build(ctx, b, tree, flatpakBuilder, flatpak, manifestTmpl, lockfile, artifact)
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
	flatpakBuilder, flatpak toolchain.Tool, manifestTmpl, lockfile, artifact string,
) (string, error) {
	p := b.Project

	// Vendor dependencies into the project so the tarball is
	// self-contained.
	if len(p.VendorCommand) > 0 {
		vendorTool, err := b.Lookup(p.VendorCommand[0])
		if err != nil {
			return "", err
		}
		if err := b.Runner.Run(ctx, vendorTool, p.VendorCommand[1:]...); err != nil {
			return "", err
		}
	}

	tarball := tree.Path(dist.SourceTarballName(p.Name, b.Version))
	sourceRoot := p.Name + "-" + b.Version
	err := b.TarGz(b.ProjectDir, sourceRoot, tarball, func(rel string) bool {
		return rel == "target" || rel == p.OutputDir || rel == ".git"
	})
	if err != nil {
		return "", err
	}

	// The generator turns Cargo.lock into a flatpak sources list. When
	// the script is not installed locally a copy is downloaded.
	generator, err := EnsureScript(ctx, p.GeneratorScript, p.GeneratorURL, tree.Root())
	if err != nil {
		return "", err
	}
	python, err := b.Lookup("python3")
	if err != nil {
		return "", err
	}
	generatedSources := tree.Path("generated-sources.json")
	if err := b.Runner.Run(ctx, python, generator, lockfile, "-o", generatedSources); err != nil {
		return "", err
	}

	manifest, err := expand.Expand(manifestTmpl, expand.Merge(b.Vars(), expand.StringMap{
		"tarball":          tarball,
		"generatedSources": generatedSources,
	}))
	if err != nil {
		return "", err
	}
	appID, err := manifestAppID(manifest)
	if err != nil {
		return "", err
	}
	manifestPath := appID + ".yml"
	if err := tree.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		return "", err
	}

	if err := b.Fs.MkdirAll(b.OutputDir, 0755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	repo := tree.Path("repo")
	err = b.Runner.Run(ctx, flatpakBuilder,
		"--force-clean",
		"--repo="+repo,
		tree.Path("builddir"),
		tree.Path(manifestPath),
	)
	if err != nil {
		return "", err
	}
	if err := b.Runner.Run(ctx, flatpak, "build-bundle", repo, artifact, appID); err != nil {
		return "", err
	}
	return artifact, nil
}

// manifestAppID reads the app id back out of the expanded manifest,
// which also catches a template edit that broke the YAML.
func manifestAppID(manifest string) (string, error) {
	parsed := struct {
		AppID string `yaml:"app-id"`
		ID    string `yaml:"id"`
	}{}
	if err := yaml.Unmarshal([]byte(manifest), &parsed); err != nil {
		return "", errors.Wrap(err, "expanded flatpak manifest is not valid YAML")
	}
	if parsed.AppID != "" {
		return parsed.AppID, nil
	}
	if parsed.ID != "" {
		return parsed.ID, nil
	}
	return "", errors.New("flatpak manifest has no app-id")
}
