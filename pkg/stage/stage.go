// Package stage builds and tears down package staging directories: the
// temporary filesystem trees laid out to match a target package format's
// expected hierarchy before a packaging tool archives them.
package stage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrMissingInput is returned by Require when a file or directory that a
// build needs does not exist. It fires before any packaging tool runs.
var ErrMissingInput = errors.New("required input missing")

// Tree is a staging directory under construction. Every entry it creates
// is recorded, so a failed build can roll the tree back without touching
// anything it did not create itself.
type Tree struct {
	fs      afero.Fs
	root    string
	log     *zap.SugaredLogger
	created []string
}

// New creates the staging root directory and returns a Tree for it.
func New(fs afero.Fs, root string, log *zap.SugaredLogger) (*Tree, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	t := &Tree{fs: fs, root: root, log: log}
	if err := t.mkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "create staging dir %s", root)
	}
	return t, nil
}

// Root returns the absolute staging root path.
func (t *Tree) Root() string { return t.root }

// Path joins path elements onto the staging root.
func (t *Tree) Path(rel ...string) string {
	return filepath.Join(append([]string{t.root}, rel...)...)
}

// MkdirAll creates a directory (and missing parents) inside the tree.
func (t *Tree) MkdirAll(rel string, perm os.FileMode) error {
	return t.mkdirAll(t.Path(rel), perm)
}

// WriteFile writes a file inside the tree, creating parent directories
// as needed.
func (t *Tree) WriteFile(rel string, data []byte, perm os.FileMode) error {
	target := t.Path(rel)
	if err := t.mkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(t.fs, target, data, perm); err != nil {
		return errors.Wrapf(err, "stage %s", rel)
	}
	t.record(target)
	return nil
}

// CopyFile copies a single file from src (outside the tree) to rel
// inside it.
func (t *Tree) CopyFile(src, rel string, perm os.FileMode) error {
	in, err := t.fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "stage %s", rel)
	}
	defer in.Close()
	target := t.Path(rel)
	if err := t.mkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := t.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "stage %s", rel)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "stage %s", rel)
	}
	t.record(target)
	return nil
}

// CopyTree copies a directory recursively from srcDir into rel, keeping
// file modes.
func (t *Tree) CopyTree(srcDir, rel string) error {
	return afero.Walk(t.fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "walk %s", srcDir)
		}
		sub, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return t.MkdirAll(filepath.Join(rel, sub), info.Mode().Perm())
		}
		return t.CopyFile(path, filepath.Join(rel, sub), info.Mode().Perm())
	})
}

// Rollback deletes the staging tree after a failed build. The tree
// created its own root, so it owns everything beneath it, including
// files a packaging tool wrote in before failing; those never appear
// in the created ledger and get swept up with the root. Recorded
// parents of the root are removed afterwards, deepest first.
func (t *Tree) Rollback() {
	if err := t.fs.RemoveAll(t.root); err != nil {
		t.log.Warnw("rollback: cannot delete staging dir", "path", t.root, "error", err)
	}
	prefix := t.root + string(os.PathSeparator)
	for p := len(t.created) - 1; p >= 0; p-- {
		path := t.created[p]
		if path == t.root || strings.HasPrefix(path, prefix) {
			continue
		}
		if err := t.fs.Remove(path); err != nil {
			t.log.Warnw("rollback: cannot delete", "path", path, "error", err)
		}
	}
	t.created = nil
}

// Remove deletes the whole staging tree. Called after the packaging tool
// has produced its artifact.
func (t *Tree) Remove() error {
	t.created = nil
	return errors.Wrapf(t.fs.RemoveAll(t.root), "remove staging dir %s", t.root)
}

// mkdirAll creates directories component by component so each newly
// created one can be recorded for rollback.
func (t *Tree) mkdirAll(path string, perm os.FileMode) error {
	sep := string(os.PathSeparator)
	partial := ""
	if strings.HasPrefix(path, sep) {
		partial = sep
	}
	for _, component := range strings.Split(path, sep) {
		if component == "" {
			continue
		}
		partial = filepath.Join(partial, component)
		exists, err := afero.DirExists(t.fs, partial)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		if exists {
			continue
		}
		if err := t.fs.Mkdir(partial, perm); err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		t.record(partial)
	}
	return nil
}

func (t *Tree) record(path string) {
	t.created = append(t.created, path)
}

// Require checks that all given files or directories exist. It is run
// before a build does anything else, so a missing template or resource
// aborts the run without side effects.
func Require(fs afero.Fs, paths ...string) error {
	for _, path := range paths {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return errors.Wrapf(err, "check %s", path)
		}
		if !exists {
			return errors.Wrapf(ErrMissingInput, "%s", path)
		}
	}
	return nil
}
