package stage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Preflight checks that dir can hold needBytes of build output, creating
// the directory if its parent exists and is writeable. It runs against
// the real filesystem since write access and free space only mean
// something there.
func Preflight(dir string, needBytes int64) error {
	parent := filepath.Dir(dir)
	parentInfo, err := os.Stat(parent)
	if err != nil || !parentInfo.IsDir() {
		return errors.Errorf("output parent is not a directory: %s", parent)
	}
	if !osFileWriteAccess(parent) {
		return errors.Errorf("output location is not writeable: %s (%s)", parent, parentInfo.Mode().Perm())
	}
	if space := osDiskSpace(parent); space >= 0 && space < needBytes {
		return errors.Errorf("not enough disk space in %s: %d bytes free, %d needed", parent, space, needBytes)
	}
	return errors.Wrapf(os.MkdirAll(dir, 0755), "create output dir %s", dir)
}
