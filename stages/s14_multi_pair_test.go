package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
)

func TestMultiPairSkippedWhenDisabled(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	s := MultiPair{Cfg: config.Default()}
	out := s.Execute(context.Background(), state, nil)

	skipped, _ := out.Result.Data["skipped"].(bool)
	if !skipped {
		t.Fatal("expected multi-pair to skip when AutoMultiPair is false")
	}
}

func TestMultiPairIsolatesPerSymbolFailure(t *testing.T) {
	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	cfg := config.New(func(c *config.Config) {
		c.AutoMultiPair = true
		c.AdditionalSymbols = []string{"GBPUSD", "USDJPY"}
	})

	s := MultiPair{Cfg: cfg, Launch: func(_ context.Context, symbol string) ChildWorkflowResult {
		if symbol == "GBPUSD" {
			return ChildWorkflowResult{Symbol: symbol, Err: errors.New("runner busy")}
		}
		return ChildWorkflowResult{Symbol: symbol, WorkflowID: "wf-child-" + symbol, Score: 6.1}
	}}
	out := s.Execute(context.Background(), state, nil)

	ids, _ := out.Result.Data["child-workflow-ids"].([]string)
	if len(ids) != 1 || ids[0] != "wf-child-USDJPY" {
		t.Fatalf("expected only the successful child recorded, got %v", ids)
	}
	warnings, _ := out.Result.Data["warnings"].([]string)
	if len(warnings) != 1 {
		t.Fatalf("expected one isolated warning for the failed symbol, got %v", warnings)
	}
	if !out.Result.Success {
		t.Fatal("expected S14 itself to succeed even when a child fails (best-effort)")
	}
}
