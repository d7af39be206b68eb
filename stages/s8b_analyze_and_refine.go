package stages

import (
	"context"
	"math"

	"github.com/eastress/ea-stress-lab/config"
	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// Recommendation is S8b's per-parameter verdict.
type Recommendation string

const (
	RecKeep     Recommendation = "KEEP"
	RecFixTrue  Recommendation = "FIX-TRUE"
	RecFixFalse Recommendation = "FIX-FALSE"
	RecNarrow   Recommendation = "NARROW"
	RecWiden    Recommendation = "WIDEN"
)

// ParamAnalysis is one parameter's toggle or clustering analysis result.
type ParamAnalysis struct {
	Name           string
	Recommendation Recommendation
	ProportionTrue float64 // toggle analysis
	Mean           float64 // clustering analysis
	StdDev         float64
	CV             float64
	DistinctValues int
	SuggestedRange *domain.OptimizationRange
}

// AnalyzeAndRefine is S8b: analyze the top-N passes for toggle dominance
// and numeric clustering, and produce a refine-or-proceed decision.
type AnalyzeAndRefine struct {
	Cfg config.Config
}

func (AnalyzeAndRefine) Name() string { return domain.StageAnalyzeAndRefine }

func (AnalyzeAndRefine) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageParseResults) {
		return false, []string{"parse-results must complete first"}
	}
	return true, nil
}

func (s AnalyzeAndRefine) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	passes := state.PassTable

	topN := s.Cfg.TopNDisplay
	if topN == 0 {
		topN = 20
	}
	if topN > len(passes) {
		topN = len(passes)
	}
	top := passes[:topN]

	analyses := analyzeParams(state.ExtractedParameters, state.OptimizationRanges, top, s.Cfg)

	refine := false
	for _, a := range analyses {
		if a.Recommendation != RecKeep {
			refine = true
			break
		}
	}

	maxRefine := s.Cfg.MaxRefineIterations
	if maxRefine == 0 {
		maxRefine = 2
	}
	// Refining off fewer than MinValidPasses surviving passes would chase
	// noise: the top-N dominance and clustering statistics are only
	// meaningful against a reasonably sized pass population.
	enoughPasses := len(passes) >= s.Cfg.MinValidPasses
	canRefine := refine && enoughPasses && state.RefineIterations < maxRefine

	data := map[string]interface{}{
		"analyses":      analyses,
		"refine":        canRefine,
		"refine-recommended": refine,
	}

	res := result(domain.StageAnalyzeAndRefine, true, data, nil)
	if canRefine && !s.Cfg.AutoRefineDecision {
		return stage.Outcome{Result: res, Pause: domain.StatusAwaitingRefineDecision}
	}
	return stage.Outcome{Result: res}
}

func analyzeParams(params []domain.Parameter, ranges []domain.OptimizationRange, top []domain.OptimizationPass, cfg config.Config) []ParamAnalysis {
	var analyses []ParamAnalysis
	for _, r := range ranges {
		if !r.Optimize {
			continue
		}
		param := findParam(params, r.Name)
		if param.Kind == domain.KindBool {
			analyses = append(analyses, analyzeToggle(r, top, cfg))
		} else {
			analyses = append(analyses, analyzeCluster(r, top, cfg))
		}
	}
	return analyses
}

func findParam(params []domain.Parameter, name string) domain.Parameter {
	for _, p := range params {
		if p.Name == name {
			return p
		}
	}
	return domain.Parameter{}
}

func analyzeToggle(r domain.OptimizationRange, top []domain.OptimizationPass, cfg config.Config) ParamAnalysis {
	trueCount := 0
	total := 0
	for _, p := range top {
		v, ok := p.Assignment[r.Name]
		if !ok {
			continue
		}
		total++
		if v.Kind == domain.KindBool && v.B {
			trueCount++
		} else if v.Kind != domain.KindBool && v.F == 1 {
			trueCount++
		}
	}
	prop := 0.0
	if total > 0 {
		prop = float64(trueCount) / float64(total)
	}

	threshold := cfg.ToggleDominanceThreshold
	if threshold == 0 {
		threshold = 0.70
	}
	rec := RecKeep
	if prop >= threshold {
		rec = RecFixTrue
	} else if 1-prop >= threshold {
		rec = RecFixFalse
	}
	return ParamAnalysis{Name: r.Name, Recommendation: rec, ProportionTrue: prop}
}

func analyzeCluster(r domain.OptimizationRange, top []domain.OptimizationPass, cfg config.Config) ParamAnalysis {
	var values []float64
	distinct := map[float64]bool{}
	for _, p := range top {
		v, ok := p.Assignment[r.Name]
		if !ok {
			continue
		}
		f := v.F
		values = append(values, f)
		distinct[f] = true
	}
	if len(values) == 0 {
		return ParamAnalysis{Name: r.Name, Recommendation: RecKeep}
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)

	cv := 0.0
	if mean != 0 {
		cv = stddev / math.Abs(mean)
	}

	cvThreshold := cfg.ClusteringCVThreshold
	if cvThreshold == 0 {
		cvThreshold = 0.20
	}

	rec := RecKeep
	var suggested *domain.OptimizationRange
	if cv < cvThreshold {
		rec = RecNarrow
		min, max := minMax(values)
		suggested = &domain.OptimizationRange{
			Name: r.Name, Optimize: true,
			Start: min, Stop: max, Step: r.Step / 2,
		}
	} else if len(distinct) <= 2 {
		rec = RecWiden
	}

	return ParamAnalysis{
		Name: r.Name, Recommendation: rec,
		Mean: mean, StdDev: stddev, CV: cv,
		DistinctValues: len(distinct), SuggestedRange: suggested,
	}
}

func minMax(values []float64) (float64, float64) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

var _ stage.Stage = AnalyzeAndRefine{}
