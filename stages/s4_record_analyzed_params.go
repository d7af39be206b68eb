package stages

import (
	"context"

	"github.com/eastress/ea-stress-lab/domain"
	"github.com/eastress/ea-stress-lab/runner"
	"github.com/eastress/ea-stress-lab/stage"
)

// RecordAnalyzedParams is S4: validate and record the agent-supplied
// wide-validation-params and optimization-ranges. It also enforces the
// carry-over rule: a boolean toggle present in wide-validation-params but
// absent from optimization-ranges is appended as a fixed parameter at its
// wide value, preventing a class of silent "zero trades" failures.
type RecordAnalyzedParams struct {
	SafetyDefaults map[string]domain.Value
}

func (RecordAnalyzedParams) Name() string { return domain.StageRecordAnalyzedParams }

func (RecordAnalyzedParams) Preconditions(state *domain.WorkflowState) (bool, []string) {
	if !state.HasStage(domain.StageExtractParams) {
		return false, []string{"extract-params must complete first"}
	}
	if len(state.WideValidationParams) == 0 {
		return false, []string{"wide-validation-params has not been supplied"}
	}
	return true, nil
}

func (s RecordAnalyzedParams) Execute(_ context.Context, state *domain.WorkflowState, _ runner.Runner) stage.Outcome {
	errs := domain.ValidateRanges(state.ExtractedParameters, state.OptimizationRanges)

	rangeNames := make(map[string]bool, len(state.OptimizationRanges))
	for _, r := range state.OptimizationRanges {
		rangeNames[r.Name] = true
	}

	byName := make(map[string]domain.Parameter, len(state.ExtractedParameters))
	for _, p := range state.ExtractedParameters {
		byName[p.Name] = p
	}

	finalRanges := append([]domain.OptimizationRange(nil), state.OptimizationRanges...)
	var carriedOver []string
	for name, v := range state.WideValidationParams {
		p, known := byName[name]
		if !known || p.Kind != domain.KindBool || rangeNames[name] {
			continue
		}
		finalRanges = append(finalRanges, domain.OptimizationRange{Name: name, Optimize: false, Fixed: v})
		carriedOver = append(carriedOver, name)
	}

	for name, defVal := range s.SafetyDefaults {
		if _, present := state.WideValidationParams[name]; !present {
			errs = append(errs, "safety parameter missing from wide-validation-params: "+name)
		}
		found := false
		for _, r := range finalRanges {
			if r.Name == name {
				found = true
				if r.Optimize {
					errs = append(errs, "safety parameter must not be optimized: "+name)
				}
				break
			}
		}
		if !found {
			finalRanges = append(finalRanges, domain.OptimizationRange{Name: name, Optimize: false, Fixed: defVal})
		}
	}

	data := map[string]interface{}{
		"optimization-ranges": finalRanges,
		"carried-over-toggles": carriedOver,
	}

	if len(errs) > 0 {
		return stage.Outcome{Result: result(domain.StageRecordAnalyzedParams, false, data, nil, errs...)}
	}
	return stage.Outcome{Result: result(domain.StageRecordAnalyzedParams, true, data, nil)}
}

var _ stage.Stage = RecordAnalyzedParams{}
