package reportwriter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/eastress/ea-stress-lab/domain"
)

func baseState() *domain.WorkflowState {
	w := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	w = w.WithStageResult(domain.StageResult{StageName: domain.StageLoadEA, Success: true})
	return w
}

func TestWriteProducesAllThreeArtifacts(t *testing.T) {
	dir := t.TempDir()
	state := baseState()

	set, err := Write(dir, "EA_handle_1", state, true)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	for _, p := range []string{set.DashboardPath, set.LeaderboardPath, set.SummaryPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected artifact at %s, got error: %v", p, err)
		}
	}
	if set.Verdict != "NO GO: no pass survived backtesting" {
		t.Fatalf("expected a no-pass verdict when BestPass is nil, got %q", set.Verdict)
	}
	if set.GoLive {
		t.Fatal("expected GoLive to be false when BestPass is nil")
	}
}

func TestWriteGoLiveVerdictWhenBestPassClearsGates(t *testing.T) {
	dir := t.TempDir()
	state := baseState()
	state.BestPass = &domain.BacktestedPass{PassIndex: 7, Score: 0.81}

	set, err := Write(dir, "EA_handle_2", state, true)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.HasPrefix(set.Verdict, "GO LIVE: pass 7") {
		t.Fatalf("expected a GO LIVE verdict naming pass 7, got %q", set.Verdict)
	}
	if !set.GoLive {
		t.Fatal("expected GoLive true when all critical gates passed")
	}

	raw, err := os.ReadFile(set.LeaderboardPath)
	if err != nil {
		t.Fatalf("reading leaderboard: %v", err)
	}
	if gjson.GetBytes(raw, "best_pass.index").Int() != 7 {
		t.Fatalf("expected leaderboard to record best_pass.index=7, got %s", raw)
	}
}

func TestWriteNoGoVerdictWhenGatesFailedDespiteABestPass(t *testing.T) {
	dir := t.TempDir()
	state := baseState()
	state.BestPass = &domain.BacktestedPass{PassIndex: 3}

	set, err := Write(dir, "EA_handle_3", state, false)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(set.Verdict, "NO GO") || !strings.Contains(set.Verdict, "pass 3") {
		t.Fatalf("expected a NO GO verdict naming pass 3, got %q", set.Verdict)
	}
}

func TestWriteDashboardPreservesCreatedAtAcrossRepeatedCalls(t *testing.T) {
	dir := t.TempDir()
	state := baseState()

	set, err := Write(dir, "EA_handle_4", state, true)
	if err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	first, err := os.ReadFile(set.DashboardPath)
	if err != nil {
		t.Fatalf("reading first dashboard: %v", err)
	}
	firstCreatedAt := gjson.GetBytes(first, "created_at").String()

	// A later S11 call (e.g. after a refine-loop restart) must not
	// clobber the artifact's original created_at.
	state.Status = domain.StatusCompleted
	if _, err := Write(dir, "EA_handle_4", state, true); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	second, err := os.ReadFile(set.DashboardPath)
	if err != nil {
		t.Fatalf("reading second dashboard: %v", err)
	}
	if gjson.GetBytes(second, "created_at").String() != firstCreatedAt {
		t.Fatalf("expected created_at to survive a second Write, got %q vs %q", firstCreatedAt, gjson.GetBytes(second, "created_at").String())
	}
	if gjson.GetBytes(second, "status").String() != string(domain.StatusCompleted) {
		t.Fatal("expected the second write to still update mutable fields like status")
	}
}

func TestWriteCreatesOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	state := baseState()

	if _, err := Write(dir, "EA_handle_5", state, true); err != nil {
		t.Fatalf("expected Write to create a nested output directory, got error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected output directory to exist, got error: %v", err)
	}
}
