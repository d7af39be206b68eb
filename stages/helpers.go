// Package stages implements the eighteen concrete pipeline steps from
// spec §4.4. Each stage is grounded on the teacher's Node[S] contract
// (graph/node.go) but operates on the single concrete
// domain.WorkflowState instead of a generic state parameter, and on
// config.Config for every tunable threshold instead of reading free
// globals.
package stages

import (
	"time"

	"github.com/eastress/ea-stress-lab/domain"
)

func result(name string, success bool, data map[string]interface{}, gate *domain.GateResult, errs ...string) domain.StageResult {
	return domain.StageResult{
		StageName: name,
		Success:   success,
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		Data:      data,
		Gate:      gate,
		Errors:    errs,
	}
}

func fatal(name, code, msg string, cause error) domain.StageResult {
	stageErr := &domain.StageError{Message: msg, Code: code, StageName: name, Cause: cause}
	return domain.StageResult{
		StageName: name,
		Success:   false,
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		Errors:    []string{stageErr.Error() + " [" + code + "]"},
	}
}

// adaptiveTradeFloor computes S8's adaptive minimum-trades threshold:
// min(50, max(10, floor(0.8 * validationTrades))). When validationTrades
// is zero, the fallback is the fixed min-trades gate threshold rather
// than the exploration minimum (DESIGN.md Open Question decision #2):
// a zero here this late in the pipeline means S5's gate should already
// have failed the workflow, so failing closed beats silently admitting
// a data-plumbing defect as a pass.
func adaptiveTradeFloor(validationTrades, explorationMin, minTrades int) int {
	if validationTrades <= 0 {
		return minTrades
	}
	floor := int(0.8 * float64(validationTrades))
	if floor < explorationMin {
		floor = explorationMin
	}
	if floor > minTrades {
		floor = minTrades
	}
	return floor
}
