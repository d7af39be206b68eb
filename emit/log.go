package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured events to a writer, either as human-readable
// key=value lines or as JSONL.
//
// Example text output:
//
//	[stage_end] runID=wf-1 step=6 stageName=compile meta={"success":true}
//
// Example JSON output:
//
//	{"runID":"wf-1","step":6,"stageName":"compile","msg":"stage_end","meta":{"success":true}}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter writes to writer (defaulting to os.Stdout) in JSONL when
// jsonMode is true, otherwise in the human-readable text format.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID     string                 `json:"runID"`
		Step      int                    `json:"step"`
		StageName string                 `json:"stageName"`
		Msg       string                 `json:"msg"`
		Meta      map[string]interface{} `json:"meta"`
	}{
		RunID:     event.RunID,
		Step:      event.Step,
		StageName: event.StageName,
		Msg:       event.Msg,
		Meta:      event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s step=%d stageName=%s",
		event.Msg, event.RunID, event.Step, event.StageName)
	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes every event in order, amortizing the cost of one Emit
// call per event when a stage reports several events at once.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously and buffers nothing
// itself. Wrap writer in a bufio.Writer and flush that directly if needed.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }

var _ Emitter = (*LogEmitter)(nil)
