package audit

import (
	"context"
	"encoding/json"
	"log/slog"
)

// SubjectAll matches every audit topic.
const SubjectAll = "configsync.audit.>"

// Writer consumes audit entries from the broker and persists them to the
// trail file. It is the asynchronous half of the trail: handlers publish,
// the writer lands the line on disk.
type Writer struct {
	sub    *NATSSubscriber
	sink   *FileSink
	logger *slog.Logger
}

func NewWriter(sub *NATSSubscriber, sink *FileSink, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{sub: sub, sink: sink, logger: logger}
}

// Run consumes entries until ctx is cancelled. Malformed payloads and write
// failures are logged and skipped; the writer keeps going.
func (w *Writer) Run(ctx context.Context) error {
	ch, cancel, err := w.sub.Subscribe(SubjectAll)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var e Entry
			if err := json.Unmarshal(data, &e); err != nil {
				w.logger.Warn("discarding malformed audit entry", "error", err)
				continue
			}
			if err := w.sink.Write(e); err != nil {
				w.logger.Error("audit trail write failed", "topic", e.Topic, "error", err)
			}
		}
	}
}
