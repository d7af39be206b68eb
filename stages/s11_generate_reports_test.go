package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
)

func TestGenerateReportsAlwaysRunsAndWritesVerdict(t *testing.T) {
	dir := t.TempDir()
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	state.BestPass = &domain.BacktestedPass{
		PassIndex: 3,
		Score:     7.5,
		Gates: []domain.GateResult{
			{Name: domain.GateProfitFactor, Passed: true},
			{Name: domain.GateMaxDrawdown, Passed: true},
		},
	}

	s := GenerateReports{Cfg: config.Default(), OutputDir: dir}
	out := s.Execute(context.Background(), state, nil)

	if !out.Result.Success {
		t.Fatalf("expected S11 to always succeed when it can write artifacts, got errors: %v", out.Result.Errors)
	}
	goLive, _ := out.Result.Data["go-live"].(bool)
	if !goLive {
		t.Fatal("expected go-live true when all best-pass gates passed")
	}

	dashboardPath, _ := out.Result.Data["dashboard-path"].(string)
	if _, err := os.Stat(filepath.Clean(dashboardPath)); err != nil {
		t.Fatalf("expected dashboard artifact on disk: %v", err)
	}
}

func TestGenerateReportsNoGoWhenGateFailed(t *testing.T) {
	dir := t.TempDir()
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	state.BestPass = &domain.BacktestedPass{
		PassIndex: 1,
		Gates:     []domain.GateResult{{Name: domain.GateProfitFactor, Passed: false}},
	}

	s := GenerateReports{Cfg: config.Default(), OutputDir: dir}
	out := s.Execute(context.Background(), state, nil)

	goLive, _ := out.Result.Data["go-live"].(bool)
	if goLive {
		t.Fatal("expected go-live false when a critical gate failed")
	}
}

func TestGenerateReportsRunsEvenWithNoBestPass(t *testing.T) {
	dir := t.TempDir()
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})

	s := GenerateReports{Cfg: config.Default(), OutputDir: dir}
	out := s.Execute(context.Background(), state, nil)

	if !out.Result.Success {
		t.Fatal("S11 must always run, even with no surviving pass")
	}
}
