package gpgverify

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"

	"github.com/sabrina905990/apt/pkg/errors"
)

// Runner executes the external signature-verification helper, returning
// whatever it wrote to its machine-readable status channel (fd 3, the
// GnuPG `--status-fd` convention) and its exit code. Exists so tests can
// substitute a fake helper without forking a real gpgv.
type Runner interface {
	Run(ctx context.Context, helperPath string, args []string) (statusOutput []byte, exitCode int, err error)
}

// ExecRunner forks the real helper binary, redirecting its status output
// to what becomes file descriptor 3 in the child, via os/exec's
// ExtraFiles.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, helperPath string, args []string) ([]byte, int, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not create status pipe")
	}
	defer r.Close() //nolint:errcheck

	cmd := exec.CommandContext(ctx, helperPath, args...)
	cmd.ExtraFiles = []*os.File{w}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		w.Close() //nolint:errcheck
		// Mirrors ExecGPGV's own exit(111) when the helper can't be
		// found or run: not a plumbing failure of this Runner, but the
		// documented "helper missing" outcome the caller classifies.
		return nil, 111, nil
	}
	w.Close() //nolint:errcheck

	data, readErr := io.ReadAll(r)
	waitErr := cmd.Wait()

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return data, -1, errors.Wrap(waitErr, "could not wait for verification helper")
		}
	}
	if readErr != nil {
		return data, exitCode, errors.Wrap(readErr, "could not read verification helper status output")
	}
	return data, exitCode, nil
}
