// Package toolchain locates and runs the external packaging tools
// (dpkg-deb, rpmbuild, flatpak-builder, makensis, the release build
// command). Tools run strictly one after another; the first non-zero
// exit aborts the whole build.
package toolchain

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrToolNotFound is returned when a required external tool is not on
// the search path.
var ErrToolNotFound = errors.New("tool not found on PATH")

// Tool is a resolved external executable.
type Tool struct {
	Name string
	Path string
}

// Lookup resolves a tool name on the search path. Builders call this for
// every tool they need before creating any staging directory, so a
// missing tool aborts a run without side effects.
func Lookup(name string) (Tool, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return Tool{}, errors.Wrapf(ErrToolNotFound, "%s", name)
	}
	return Tool{Name: name, Path: path}, nil
}

// Runner executes tools in a fixed working directory, streaming their
// output into the build log.
type Runner struct {
	Dir string
	Env []string
	log *zap.SugaredLogger
}

// NewRunner returns a Runner working in dir.
func NewRunner(dir string, log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{Dir: dir, log: log}
}

// Run executes the tool and waits for it to finish. The tool's exit
// status becomes the run's failure, like `set -e` did for the shell
// scripts.
func (r *Runner) Run(ctx context.Context, tool Tool, args ...string) error {
	r.log.Infow("run", "tool", tool.Name, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, tool.Path, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.log.Debugw("tool output", "tool", tool.Name, "output", string(out))
	}
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", tool.Name, lastLine(out))
	}
	return nil
}

// Output executes the tool and returns its standard output.
func (r *Runner) Output(ctx context.Context, tool Tool, args ...string) (string, error) {
	r.log.Infow("run", "tool", tool.Name, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, tool.Path, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed", tool.Name)
	}
	return string(out), nil
}

// EnsureScript returns a runnable path for the named helper script. If
// the script is on the search path it is used as is; otherwise it is
// downloaded from url into dir. The flatpak source generator is fetched
// this way when it is not installed locally.
func EnsureScript(ctx context.Context, name, url, dir string) (string, error) {
	if tool, err := Lookup(name); err == nil {
		return tool.Path, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrapf(err, "download %s", name)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "download %s", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("download %s: unexpected status %s", name, resp.Status)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return "", errors.Wrapf(err, "save %s", name)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", errors.Wrapf(err, "save %s", name)
	}
	return path, nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
