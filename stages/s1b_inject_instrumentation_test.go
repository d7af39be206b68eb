package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
)

func TestInjectInstrumentationAppendsCriterionOnce(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "EA.mq4")
	if err := os.WriteFile(src, []byte("// original body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	state := domain.NewWorkflowState("wf-1", src, "EURUSD", "H1", "handle", time.Time{})
	state = state.WithStageResult(domain.StageResult{StageName: domain.StageLoadEA, Success: true})

	s := InjectInstrumentation{ExplorationMinTrades: 10}
	out := s.Execute(context.Background(), state, runner.NewDryRun())
	if !out.Result.Success {
		t.Fatalf("expected success, got errors: %v", out.Result.Errors)
	}
	modifiedPath, _ := out.Result.Data["modified-ea-path"].(string)
	if modifiedPath == "" {
		t.Fatal("expected a modified-ea-path in result data")
	}

	content, err := os.ReadFile(modifiedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), instrumentationMarker) {
		t.Fatal("expected the instrumentation marker to be present")
	}
	if !strings.Contains(string(content), "EAStressLabCriterion") {
		t.Fatal("expected the criterion function to be appended")
	}

	state.ModifiedEAPath = modifiedPath
	second := s.Execute(context.Background(), state, runner.NewDryRun())
	if !second.Result.Success {
		t.Fatalf("expected idempotent re-run to succeed, got errors: %v", second.Result.Errors)
	}
	alreadyDone, _ := second.Result.Data["already-instrumented"].(bool)
	if !alreadyDone {
		t.Fatal("expected the second run to recognize the file was already instrumented")
	}

	secondContent, err := os.ReadFile(modifiedPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(secondContent), instrumentationMarker) != 1 {
		t.Fatal("expected exactly one instrumentation marker after a repeated run")
	}
}

func TestInjectInstrumentationFailsWhenSourceMissing(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "/nonexistent/EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	out := InjectInstrumentation{}.Execute(context.Background(), state, runner.NewDryRun())
	if out.Result.Success {
		t.Fatal("expected failure when the EA source cannot be read")
	}
}
