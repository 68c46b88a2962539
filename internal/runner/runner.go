package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ExitError reports a CLI invocation that exited non-zero. It carries the
// exit code and both captured streams so callers can log or assert on them.
type ExitError struct {
	Args   []string // full argv, binary first
	Code   int
	Output string // captured stdout
	Stderr string // captured stderr
}

// Error implements the error interface. Stderr usually carries the reason,
// so it is included when present.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner executes one CLI binary against one cluster's credentials file.
type Runner struct {
	binary     string
	kubeconfig string
	log        *slog.Logger
}

// New creates a Runner for the given binary path and credentials file.
// If logger is nil, slog.Default() is used.
func New(binary, kubeconfig string, logger *slog.Logger) (*Runner, error) {
	if binary == "" {
		return nil, errors.New("binary path must not be empty")
	}
	if kubeconfig == "" {
		return nil, errors.New("kubeconfig path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{binary: binary, kubeconfig: kubeconfig, log: logger}, nil
}

// Command builds an exec.Cmd for the binary with the credentials file
// injected via the KUBECONFIG environment variable. The process environment
// is inherited so PATH-dependent tooling (e.g., credential plugins) keeps
// working. The command is not started.
func (r *Runner) Command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.binary, args...) //nolint:gosec // G204: binary path is from controlled configuration
	cmd.Env = append(os.Environ(), "KUBECONFIG="+r.kubeconfig)
	return cmd
}

// Run executes the binary with args and returns captured stdout as text.
// A non-zero exit returns a *ExitError carrying the exit code and both
// captured streams. Errors starting the process (e.g., missing binary) are
// returned as-is.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := r.Command(ctx, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("running command", "binary", r.binary, "args", args)

	if err := cmd.Run(); err != nil {
		var execErr *exec.ExitError
		if errors.As(err, &execErr) {
			return "", &ExitError{
				Args:   append([]string{r.binary}, args...),
				Code:   execErr.ExitCode(),
				Output: stdout.String(),
				Stderr: stderr.String(),
			}
		}
		return "", fmt.Errorf("run %s: %w", r.binary, err)
	}

	return stdout.String(), nil
}
