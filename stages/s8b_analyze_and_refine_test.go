package stages

import (
	"context"
	"testing"
	"time"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
)

func passWithAssignment(idx int, assignment map[string]domain.Value, trades int) domain.OptimizationPass {
	return domain.OptimizationPass{Index: idx, Assignment: assignment, Trades: trades, CombinedMetric: float64(idx)}
}

func TestAnalyzeToggleFixesDominantValue(t *testing.T) {
	var top []domain.OptimizationPass
	for i := 0; i < 10; i++ {
		v := domain.BoolValue(i < 8)
		top = append(top, passWithAssignment(i, map[string]domain.Value{"UseTrailingStop": v}, 60))
	}
	r := domain.OptimizationRange{Name: "UseTrailingStop", Optimize: true}
	cfg := config.Default()
	got := analyzeToggle(r, top, cfg)
	if got.Recommendation != RecFixTrue {
		t.Fatalf("expected FIX-TRUE at 80%% dominance, got %s (prop=%v)", got.Recommendation, got.ProportionTrue)
	}
}

func TestAnalyzeToggleKeepsWhenSplit(t *testing.T) {
	var top []domain.OptimizationPass
	for i := 0; i < 10; i++ {
		top = append(top, passWithAssignment(i, map[string]domain.Value{"Flag": domain.BoolValue(i%2 == 0)}, 60))
	}
	r := domain.OptimizationRange{Name: "Flag", Optimize: true}
	got := analyzeToggle(r, top, config.Default())
	if got.Recommendation != RecKeep {
		t.Fatalf("expected KEEP at 50/50 split, got %s", got.Recommendation)
	}
}

func TestAnalyzeClusterNarrowsLowVariance(t *testing.T) {
	var top []domain.OptimizationPass
	vals := []float64{100, 101, 99, 100, 102, 98, 100, 101}
	for i, v := range vals {
		top = append(top, passWithAssignment(i, map[string]domain.Value{"StopLossPips": domain.RealValue(v)}, 60))
	}
	r := domain.OptimizationRange{Name: "StopLossPips", Optimize: true, Step: 2}
	got := analyzeCluster(r, top, config.Default())
	if got.Recommendation != RecNarrow {
		t.Fatalf("expected NARROW for low-CV cluster, got %s (cv=%v)", got.Recommendation, got.CV)
	}
	if got.SuggestedRange == nil {
		t.Fatal("expected a suggested range for NARROW")
	}
}

func TestAnalyzeClusterWidensFewDistinctValues(t *testing.T) {
	var top []domain.OptimizationPass
	for i := 0; i < 8; i++ {
		v := 50.0
		if i%2 == 0 {
			v = 200.0
		}
		top = append(top, passWithAssignment(i, map[string]domain.Value{"TakeProfitPips": domain.RealValue(v)}, 60))
	}
	r := domain.OptimizationRange{Name: "TakeProfitPips", Optimize: true}
	got := analyzeCluster(r, top, config.Default())
	if got.Recommendation != RecWiden {
		t.Fatalf("expected WIDEN when only two widely-spread distinct values were exercised, got %s (cv=%v)", got.Recommendation, got.CV)
	}
}

func TestAnalyzeClusterNarrowsWhenFewDistinctValuesAgreeTightly(t *testing.T) {
	var top []domain.OptimizationPass
	for i := 0; i < 8; i++ {
		top = append(top, passWithAssignment(i, map[string]domain.Value{"TakeProfitPips": domain.RealValue(50)}, 60))
	}
	r := domain.OptimizationRange{Name: "TakeProfitPips", Optimize: true, Step: 2}
	got := analyzeCluster(r, top, config.Default())
	if got.Recommendation != RecNarrow {
		t.Fatalf("expected NARROW to take precedence when CV is also below threshold, got %s (cv=%v, distinct=%d)", got.Recommendation, got.CV, got.DistinctValues)
	}
}

func TestAnalyzeAndRefinePausesWhenManualDecisionRequired(t *testing.T) {
	ranges := []domain.OptimizationRange{{Name: "Flag", Optimize: true}}
	params := []domain.Parameter{{Name: "Flag", Kind: domain.KindBool}}

	var passes []domain.OptimizationPass
	for i := 0; i < 10; i++ {
		passes = append(passes, passWithAssignment(i, map[string]domain.Value{"Flag": domain.BoolValue(true)}, 60))
	}

	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	state.OptimizationRanges = ranges
	state.ExtractedParameters = params
	state.PassTable = passes
	state = state.WithStageResult(domain.StageResult{
		StageName: domain.StageParseResults,
		Success:   true,
	})

	cfg := config.New(config.WithAutoRefineDecision(false))
	cfg.MinValidPasses = len(passes)
	s := AnalyzeAndRefine{Cfg: cfg}
	out := s.Execute(context.Background(), state, nil)

	if out.Pause != domain.StatusAwaitingRefineDecision {
		t.Fatalf("expected pause at awaiting-refine-decision, got %q", out.Pause)
	}
}

func TestAnalyzeAndRefineCapsAtMaxIterations(t *testing.T) {
	ranges := []domain.OptimizationRange{{Name: "Flag", Optimize: true}}
	params := []domain.Parameter{{Name: "Flag", Kind: domain.KindBool}}

	var passes []domain.OptimizationPass
	for i := 0; i < 10; i++ {
		passes = append(passes, passWithAssignment(i, map[string]domain.Value{"Flag": domain.BoolValue(true)}, 60))
	}

	state := domain.NewWorkflowState("wf-1", "EA.mq4", "EURUSD", "H1", "handle", time.Time{})
	state.OptimizationRanges = ranges
	state.ExtractedParameters = params
	state.RefineIterations = 2
	state.PassTable = passes
	state = state.WithStageResult(domain.StageResult{
		StageName: domain.StageParseResults,
		Success:   true,
	})

	cfg := config.Default()
	cfg.MinValidPasses = len(passes)
	s := AnalyzeAndRefine{Cfg: cfg}
	out := s.Execute(context.Background(), state, nil)

	refine, _ := out.Result.Data["refine"].(bool)
	if refine {
		t.Fatal("expected refine to be capped once RefineIterations reaches MaxRefineIterations")
	}
}
