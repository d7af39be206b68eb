package stages

import (
	"os"

	"github.com/eastress/ea-stress-lab/domain"
)

// RepairEA is S5b's housekeeping: back up the true original source once
// per workflow, write the externally-supplied patch over the working
// source, and signal the orchestrator to restart at S1 with the
// fix-attempts counter retained. It is invoked directly by the
// orchestrator's ResumeWithPatchedSource entry point rather than through
// the stage Registry, since its input (the patch body) does not fit the
// uniform Stage.Execute signature — it arrives as resume-call data, not
// as prior state.
func RepairEA(state *domain.WorkflowState, patchedSource string) (domain.StageResult, error) {
	backupPath := state.EASourcePath + ".orig"
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		original, readErr := os.ReadFile(state.EASourcePath)
		if readErr != nil {
			return domain.StageResult{}, readErr
		}
		if writeErr := os.WriteFile(backupPath, original, 0o644); writeErr != nil {
			return domain.StageResult{}, writeErr
		}
	}

	if err := os.WriteFile(state.EASourcePath, []byte(patchedSource), 0o644); err != nil {
		return domain.StageResult{}, err
	}

	// The instrumented/safety-injected sibling is derived from the
	// original source; stale, it would make S1b's idempotency check
	// re-adopt pre-patch content instead of re-deriving from the patch.
	modifiedPath := state.ModifiedEAPath
	if modifiedPath == "" {
		modifiedPath = state.EASourcePath + ".instrumented"
	}
	if err := os.Remove(modifiedPath); err != nil && !os.IsNotExist(err) {
		return domain.StageResult{}, err
	}

	return result(domain.StageRepairEA, true, map[string]interface{}{
		"backup-path": backupPath,
	}, nil), nil
}
