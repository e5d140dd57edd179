package episode

import (
	"context"
	"log/slog"
	"strings"

	"podscript/internal/logging"
	"podscript/internal/services"
	"podscript/internal/store"
)

// LogSink writes every transition to a logger.
type LogSink struct {
	Logger *slog.Logger
}

// Publish implements StateSink.
func (s LogSink) Publish(ctx context.Context, t Transition) error {
	logger := logging.WithContext(ctx, s.Logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from_state", string(t.From)),
		logging.String("to_state", string(t.To)),
	}
	if t.SegmentIndex >= 0 && t.SegmentCount > 0 {
		attrs = append(attrs, logging.String("progress", progressLabel(t.SegmentIndex, t.SegmentCount)))
	}
	if len(t.Skipped) > 0 {
		attrs = append(attrs, logging.Any("skipped_segments", t.Skipped))
	}
	switch t.To {
	case StateFailed:
		attrs = append(attrs, logging.String("status", t.Status), logging.Error(t.Err))
		logging.ErrorWithContext(logger, "episode failed", "episode_failed", attrs...)
	case StateComplete:
		attrs = append(attrs, logging.String("status", t.Status))
		logger.Info("episode complete", logging.Args(attrs...)...)
	default:
		logger.Debug("episode state changed", logging.Args(attrs...)...)
	}
	return nil
}

// StoreSink persists transitions as run-history rows.
type StoreSink struct {
	Store *store.Store
}

// Publish implements StateSink.
func (s StoreSink) Publish(ctx context.Context, t Transition) error {
	if s.Store == nil {
		return nil
	}
	switch t.To {
	case StateOutlineRequested:
		return s.Store.Create(ctx, &store.Episode{
			RunID:              t.Meta.RunID,
			Name:               t.Meta.Name,
			Status:             store.StatusRunning,
			State:              string(t.To),
			SegmentIndex:       -1,
			OutputDir:          t.Meta.OutputDir,
			OutlineProvider:    t.Meta.OutlineProvider,
			OutlineModel:       t.Meta.OutlineModel,
			TranscriptProvider: t.Meta.TranscriptProvider,
			TranscriptModel:    t.Meta.TranscriptModel,
			CreatedAt:          t.At,
		})
	case StateComplete:
		return s.Store.Complete(ctx, t.Meta.RunID, store.Status(t.Status), t.Skipped)
	case StateFailed:
		message := ""
		if t.Err != nil {
			message = strings.TrimSpace(t.Err.Error())
		}
		status := store.Status(t.Status)
		if status == "" {
			status = store.Status(services.StatusFailed)
		}
		return s.Store.Fail(ctx, t.Meta.RunID, status, message)
	default:
		return s.Store.Transition(ctx, t.Meta.RunID, string(t.To), t.SegmentIndex, t.SegmentCount, t.Skipped)
	}
}

func progressLabel(index, count int) string {
	return itoa(index+1) + "/" + itoa(count)
}
