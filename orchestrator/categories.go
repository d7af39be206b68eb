package orchestrator

import "github.com/eastress/ea-stress-lab/domain"

// failureCategory classifies what a stage's Success=false means for the
// workflow as a whole (spec §4.4 / §7): this table is the only place that
// knowledge lives, since a StageResult's own Errors/Gate fields don't say
// whether the failure should stop the workflow.
type failureCategory int

const (
	// categoryFatal means a stage failure fails the workflow immediately.
	categoryFatal failureCategory = iota

	// categoryGateFatal means a stage failure fails the workflow, but
	// the report stage must still run so a workflow never completes
	// (or fails) without an artifact (S11's Preconditions never block).
	categoryGateFatal

	// categoryInformational means a stage failure is recorded but never
	// changes the workflow's terminal status.
	categoryInformational
)

var stageCategories = map[string]failureCategory{
	domain.StageLoadEA:               categoryFatal,
	domain.StageInjectInstrumentation: categoryFatal,
	domain.StageInjectSafety:          categoryFatal,
	domain.StageCompile:               categoryFatal,
	domain.StageExtractParams:         categoryFatal,
	domain.StageRecordAnalyzedParams:  categoryFatal,
	domain.StageValidateTrades:        categoryFatal,
	domain.StageCreateINI:             categoryFatal,
	domain.StageRunOptimization:       categoryFatal,
	domain.StageParseResults:          categoryFatal,

	domain.StageBacktestSelected: categoryGateFatal,

	domain.StageMonteCarlo:      categoryInformational,
	domain.StageStressScenarios: categoryInformational,
	domain.StageForwardWindows:  categoryInformational,
	domain.StageMultiPair:       categoryInformational,

	// S8b and S8c gate only on "no candidates survived", which they
	// already report through Outcome.Pause/fatal path inside their own
	// Execute; a plain Success=false from either is fatal too.
	domain.StageAnalyzeAndRefine: categoryFatal,
	domain.StageSelectPasses:     categoryFatal,

	domain.StageGenerateReports: categoryInformational,
}

func categoryOf(stageName string) failureCategory {
	if c, ok := stageCategories[stageName]; ok {
		return c
	}
	return categoryFatal
}
