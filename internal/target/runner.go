package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

// Runner runs an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout bounds each command when positive.
	Timeout time.Duration
}

// Run implements Runner. A missing binary wraps util.ErrCommandNotFound and a
// non-zero exit wraps util.ErrCommandFailed.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmdline := shellquote.Join(append([]string{name}, args...)...)
	logging.DebugContext(ctx, "running command", "cmd", cmdline)

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", name, util.ErrCommandNotFound)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return string(out), fmt.Errorf("%s: %w: %s", cmdline, util.ErrCommandFailed, msg)
	}
	return string(out), nil
}

// runAll runs each command in order and stops at the first failure.
func runAll(ctx context.Context, r Runner, name string, argv [][]string) error {
	for _, args := range argv {
		if _, err := r.Run(ctx, name, args...); err != nil {
			return err
		}
	}
	return nil
}
