package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
)

func TestLoadEAPassesWhenFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "EA.mq4")
	if err := os.WriteFile(path, []byte("// body"), 0o644); err != nil {
		t.Fatal(err)
	}

	state := domain.NewWorkflowState("wf-1", path, "EURUSD", "H1", "handle", time.Time{})
	out := LoadEA{}.Execute(context.Background(), state, runner.NewDryRun())

	if !out.Result.Success {
		t.Fatalf("expected success, got errors: %v", out.Result.Errors)
	}
	if out.Result.Gate == nil || !out.Result.Gate.Passed {
		t.Fatal("expected file-exists gate to pass")
	}
}

func TestLoadEAFailsWhenFileMissing(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "/nonexistent/EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	out := LoadEA{}.Execute(context.Background(), state, runner.NewDryRun())

	if out.Result.Success {
		t.Fatal("expected failure for a missing source file")
	}
	if out.Result.Gate == nil || out.Result.Gate.Passed {
		t.Fatal("expected file-exists gate to fail")
	}
}

func TestLoadEAPreconditionsRejectEmptyPath(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "", "EURUSD", "H1", "handle", time.Time{})
	ok, reasons := LoadEA{}.Preconditions(state)
	if ok {
		t.Fatal("expected preconditions to reject an empty EA source path")
	}
	if len(reasons) == 0 {
		t.Fatal("expected a reason for the rejection")
	}
}
