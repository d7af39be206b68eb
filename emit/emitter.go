// Package emit provides pluggable observability for workflow execution.
package emit

import "context"

// Emitter receives observability events from the orchestrator and stages.
//
// Implementations should be non-blocking and must not panic; an
// observability failure must never fail a workflow.
type Emitter interface {
	// Emit sends a single event to the configured backend.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events are delivered, or the
	// context expires. Safe to call multiple times.
	Flush(ctx context.Context) error
}

// MultiEmitter fans an event out to every wrapped Emitter, in order —
// e.g. logging to stdout while also buffering for a post-run audit.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

func (m *MultiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range m.emitters {
		if err := e.EmitBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiEmitter) Flush(ctx context.Context) error {
	for _, e := range m.emitters {
		if err := e.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

var _ Emitter = (*MultiEmitter)(nil)
