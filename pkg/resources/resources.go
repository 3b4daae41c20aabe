// Package resources holds the default packaging templates and the
// translation catalogs, embedded into the binary with go.rice.
package resources

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	rice "github.com/GeertJohan/go.rice"
	"github.com/pkg/errors"
)

var (
	templateBox *rice.Box
	languageBox *rice.Box
)

// Open finds all resource boxes. For go.rice's append mode to work, all
// calls to FindBox() have to be with a literal string parameter.
func Open() error {
	var err error
	templateBox, err = rice.FindBox("templates")
	if err != nil {
		return errors.Wrap(err, "open templates box")
	}
	languageBox, err = rice.FindBox("languages")
	if err != nil {
		return errors.Wrap(err, "open languages box")
	}
	return nil
}

// MustOpen is Open for program start-up, where a missing resource box is
// not recoverable.
func MustOpen() {
	if err := Open(); err != nil {
		panic(err)
	}
}

// Template returns a named default template, e.g. "control.tmpl".
func Template(name string) (string, error) {
	if templateBox == nil {
		return "", errors.New("resource boxes not opened")
	}
	text, err := templateBox.String(name)
	if err != nil {
		return "", errors.Errorf("template %s not found", name)
	}
	return text, nil
}

// Languages returns the content of every language catalog, indexed by
// file name.
func Languages() (map[string]string, error) {
	if languageBox == nil {
		return nil, errors.New("resource boxes not opened")
	}
	pattern := regexp.MustCompile(`\.ya?ml$`)
	catalogs := make(map[string]string)
	err := languageBox.Walk("", func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !pattern.MatchString(path) {
			return err
		}
		content, err := languageBox.String(path)
		if err != nil {
			return err
		}
		catalogs[strings.TrimPrefix(filepath.ToSlash(path), "/")] = content
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list language catalogs")
	}
	return catalogs, nil
}
