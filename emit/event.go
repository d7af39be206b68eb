package emit

// Event represents an observability event emitted during workflow execution.
//
// Events give insight into pipeline behavior: stage start/end, gate
// evaluation, pause/resume transitions, and heartbeat ticks during a
// long-running sweep.
type Event struct {
	// RunID identifies the workflow whose execution emitted this event.
	RunID string

	// Step is the sequential step number within the workflow (1-indexed).
	// Zero for workflow-level events (start, complete, failure).
	Step int

	// StageName identifies which stage emitted this event. Empty for
	// workflow-level events.
	StageName string

	// Msg is a short event tag, e.g. "stage_start", "stage_end", "gate",
	// "pause", "heartbeat".
	Msg string

	// Meta carries event-specific structured data. Common keys:
	//   - "duration_ms": stage execution duration
	//   - "error": error detail string
	//   - "gate": gate name when Msg == "gate"
	//   - "status": workflow status after this event
	Meta map[string]interface{}
}
