// Package manifest extracts release metadata from the application build
// manifest. The manifest is a TOML-style file (Cargo.toml layout) but only
// the version line of the [package] section is of interest here, so it is
// read with a line scan rather than a full TOML parser.
package manifest

import (
	"bufio"
	"os"
	"regexp"

	"github.com/pkg/errors"
)

var (
	// ErrNoVersion is returned when the manifest has no usable version
	// line. A build must never proceed with an empty version string.
	ErrNoVersion = errors.New("no version line in manifest")
	// ErrBadVersion is returned when the version line exists but does not
	// hold a well-formed version string.
	ErrBadVersion = errors.New("malformed version in manifest")
)

var (
	sectionLine  = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	versionLine  = regexp.MustCompile(`^\s*version\s*=\s*"([^"]*)"\s*(#.*)?$`)
	validVersion = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.]+)?$`)
)

// Version reads the manifest file at path and returns the package version.
// Only a version line at the top of the file or inside the [package]
// section counts; version keys of dependency sections are ignored.
func Version(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open manifest")
	}
	defer f.Close()
	version, err := scanVersion(f)
	if err != nil {
		return "", errors.Wrapf(err, "manifest %s", path)
	}
	return version, nil
}

func scanVersion(f *os.File) (string, error) {
	scanner := bufio.NewScanner(f)
	section := ""
	for scanner.Scan() {
		line := scanner.Text()
		if m := sectionLine.FindStringSubmatch(line); m != nil {
			section = m[1]
			continue
		}
		if section != "" && section != "package" {
			continue
		}
		m := versionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !validVersion.MatchString(m[1]) {
			return "", errors.Wrapf(ErrBadVersion, "%q", m[1])
		}
		return m[1], nil
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "read manifest")
	}
	return "", ErrNoVersion
}
