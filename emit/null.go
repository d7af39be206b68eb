package emit

import "context"

// NullEmitter discards every event. It is the safe zero-value backend for
// workflows run without an explicit observability sink (e.g. unit tests).
type NullEmitter struct{}

func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }

var _ Emitter = (*NullEmitter)(nil)
