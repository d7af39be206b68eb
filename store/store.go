// Package store persists domain.WorkflowState across process boundaries
// so the orchestrator can suspend at a pause point and resume from a
// separate call, hours or days later — grounded on the teacher's
// Store[S] contract (graph/store/store.go), narrowed from a generic
// step-history/checkpoint/idempotency/outbox surface to a single
// overwrite-whole-state record. WorkflowState already carries its own
// ordered StageResult history (domain.WorkflowState.StageOrder), so a
// second step-log layer on top of it would just be duplicated
// bookkeeping; Save/Load treat the latest WorkflowState as the only
// durable unit.
package store

import (
	"context"
	"errors"

	"github.com/eastress/ea-stress-lab/domain"
)

// ErrNotFound is returned when a requested workflow id has no persisted
// state.
var ErrNotFound = errors.New("workflow not found")

// Store persists and retrieves WorkflowState by workflow id.
type Store interface {
	// Save overwrites the persisted state for state.WorkflowID.
	Save(ctx context.Context, state *domain.WorkflowState) error

	// Load retrieves the most recently saved state for workflowID.
	// Returns ErrNotFound if no state has ever been saved under that id.
	Load(ctx context.Context, workflowID string) (*domain.WorkflowState, error)

	// List returns every known workflow id, in no particular order.
	List(ctx context.Context) ([]string, error)

	// Close releases any underlying resources (file handles, connection
	// pools). MemStore's Close is a no-op.
	Close() error
}
