package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. Run and page
// milestones log at info; per-record events log at debug to keep large runs
// readable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("kind", string(evt.Kind)),
			zap.Int("page", evt.Page),
			zap.String("work_id", evt.WorkID),
			zap.Int64("count", evt.Count),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		switch evt.Kind {
		case progress.KindRecordAppend, progress.KindDuplicateSkip, progress.KindEnrichSkip:
			s.logger.Debug("progress event", fields...)
		default:
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
