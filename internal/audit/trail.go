package audit

import (
	"context"
	"log/slog"
	"time"
)

// Trail is the recording facade handlers use. Entries are published to the
// broker for the trail writer to persist; when publishing fails (or no
// publisher is configured) the entry is written to the file sink
// synchronously instead, so the trail never silently loses an action.
type Trail struct {
	pub    Publisher
	sink   *FileSink
	logger *slog.Logger
}

// NewTrail builds a trail. pub may be nil when no broker is configured;
// sink may be nil when no trail file is configured.
func NewTrail(pub Publisher, sink *FileSink, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{pub: pub, sink: sink, logger: logger}
}

// Record emits one audit entry. Recording failures are logged, never
// surfaced: an audit hiccup must not fail the user's request.
func (t *Trail) Record(ctx context.Context, e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	if t.pub != nil {
		err := t.pub.Publish(ctx, e.Topic, e)
		if err == nil {
			return
		}
		t.logger.Warn("audit publish failed, falling back to trail file",
			"topic", e.Topic, "error", err)
	}

	if t.sink == nil {
		t.logger.Warn("audit entry dropped, no sink configured", "topic", e.Topic)
		return
	}
	if err := t.sink.Write(e); err != nil {
		t.logger.Error("audit trail write failed", "topic", e.Topic, "error", err)
	}
}

// Close releases the underlying publisher connection, if any.
func (t *Trail) Close() error {
	if t.pub == nil {
		return nil
	}
	return t.pub.Close()
}
