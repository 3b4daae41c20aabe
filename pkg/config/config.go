// Package config reads the project build configuration (vkpack.yml) that
// replaces the constants scattered across the old packaging scripts.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultFilename is the project config file looked up in the project
// directory.
const DefaultFilename = "vkpack.yml"

// Project describes one application to package.
type Project struct {
	// Product is the human-readable application name.
	Product string `yaml:"product"`
	// Name is the package name used in artifact filenames and the
	// Debian/RPM metadata.
	Name string `yaml:"name"`
	// Binary is the name of the compiled executable.
	Binary string `yaml:"binary"`
	// AppID is the reverse-DNS id used by the Flatpak bundle.
	AppID string `yaml:"app_id"`
	// Manifest is the build manifest holding the version line.
	Manifest string `yaml:"manifest"`

	Summary     string `yaml:"summary"`
	Description string `yaml:"description"`
	Maintainer  string `yaml:"maintainer"`
	Homepage    string `yaml:"homepage"`
	License     string `yaml:"license"`
	// Arch is the Debian architecture name; the RPM one is derived.
	Arch    string `yaml:"arch"`
	Release string `yaml:"release"`

	OutputDir    string `yaml:"output_dir"`
	ResourcesDir string `yaml:"resources_dir"`
	// CommandsDir holds the per-command documentation JSON files that
	// are shipped with the application.
	CommandsDir string `yaml:"commands_dir"`

	LinuxBuild    []string `yaml:"linux_build"`
	WindowsBuild  []string `yaml:"windows_build"`
	WindowsTarget string   `yaml:"windows_target"`
	VendorCommand []string `yaml:"vendor_command"`

	// GeneratorScript is the flatpak source generator; when it is not
	// on the search path it is downloaded from GeneratorURL.
	GeneratorScript string `yaml:"generator_script"`
	GeneratorURL    string `yaml:"generator_url"`
}

// Load reads and validates the project config file at path.
func Load(path string) (*Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read project config")
	}
	p := &Project{}
	if err := yaml.UnmarshalStrict(content, p); err != nil {
		return nil, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", filepath.Base(path))
	}
	return p, nil
}

func (p *Project) applyDefaults() {
	if p.Name == "" {
		p.Name = "valkey-insight"
	}
	if p.Binary == "" {
		p.Binary = "valkey_insight"
	}
	if p.Manifest == "" {
		p.Manifest = "Cargo.toml"
	}
	if p.Arch == "" {
		p.Arch = "amd64"
	}
	if p.Release == "" {
		p.Release = "1"
	}
	if p.OutputDir == "" {
		p.OutputDir = "dist"
	}
	if p.ResourcesDir == "" {
		p.ResourcesDir = "resources"
	}
	if p.CommandsDir == "" {
		p.CommandsDir = "commands"
	}
	if len(p.LinuxBuild) == 0 {
		p.LinuxBuild = []string{"cargo", "build", "--release"}
	}
	if p.WindowsTarget == "" {
		p.WindowsTarget = "x86_64-pc-windows-gnu"
	}
	if len(p.WindowsBuild) == 0 {
		p.WindowsBuild = []string{"cargo", "build", "--release", "--target", p.WindowsTarget}
	}
	if len(p.VendorCommand) == 0 {
		p.VendorCommand = []string{"cargo", "vendor"}
	}
	if p.GeneratorScript == "" {
		p.GeneratorScript = "flatpak-cargo-generator.py"
	}
	if p.GeneratorURL == "" {
		p.GeneratorURL = "https://raw.githubusercontent.com/flatpak/flatpak-builder-tools/master/cargo/flatpak-cargo-generator.py"
	}
}

func (p *Project) validate() error {
	switch {
	case p.Product == "":
		return errors.New("product must be set")
	case p.AppID == "":
		return errors.New("app_id must be set")
	case p.Maintainer == "":
		return errors.New("maintainer must be set")
	}
	return nil
}

// RPMArch maps the configured Debian architecture name to the RPM one.
func (p *Project) RPMArch() string {
	switch p.Arch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "i386":
		return "i686"
	default:
		return p.Arch
	}
}
