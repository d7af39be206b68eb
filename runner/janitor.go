package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ProcessJanitor kills stray instances of the runner executable left
// behind by a timed-out or crashed sweep, confining every platform
// difference to this one small type (spec §9 Design Notes).
type ProcessJanitor struct {
	// ExecutablePath is the runner binary's path; only processes whose
	// command line matches this path are targeted.
	ExecutablePath string

	// kill is overridable in tests so KillAllMatching never shells out
	// for real during a test run.
	kill func(ctx context.Context, pattern string) error
}

// NewProcessJanitor returns a janitor that targets execPath via pkill.
func NewProcessJanitor(execPath string) *ProcessJanitor {
	return &ProcessJanitor{
		ExecutablePath: execPath,
		kill: func(ctx context.Context, pattern string) error {
			cmd := exec.CommandContext(ctx, "pkill", "-f", pattern)
			out, err := cmd.CombinedOutput()
			// pkill exits 1 when no process matched; that is not a
			// janitor failure.
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
					return nil
				}
				return fmt.Errorf("pkill -f %q: %w: %s", pattern, err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// KillAllMatching terminates every process whose command line contains
// the janitor's ExecutablePath, waiting up to timeout for the call to
// return. A failure here is an intermittent error per spec §7 — it is
// reported, never fatal, and the caller is expected to swallow it with a
// warning record.
func (j *ProcessJanitor) KillAllMatching(ctx context.Context, timeout time.Duration) error {
	// An empty pattern would match every process on the host; with no
	// configured executable there is nothing to clean up.
	if j.ExecutablePath == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return j.kill(ctx, j.ExecutablePath)
}
