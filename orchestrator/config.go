// Package orchestrator owns the stress-test workflow's state machine: it
// walks domain.WorkflowState through the named stage sequence, persists a
// checkpoint after every stage, and suspends at the five pause points the
// stages themselves report via stage.Outcome.Pause — grounded on the
// teacher's Engine[S] (graph/engine.go), specialized from a predicate-
// routed DAG over an arbitrary state type to a fixed, named sequence over
// one concrete state.
package orchestrator

import "github.com/eastress/ea-stress-lab/config"

// Config is re-exported so callers outside this module only ever import
// orchestrator, never config directly. It has to live in its own package
// because stages also depends on it and stages cannot import orchestrator
// without creating a cycle (orchestrator dispatches stages through
// stage.Registry).
type Config = config.Config
