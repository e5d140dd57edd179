package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// recordHandler writes one JSON object per record. It backs the log file and
// the json console format. Records logged with a context that carries episode
// identity get run_id, stage, segment_index, and correlation_id even when the
// logger was not built through WithContext, so every line in the log file can
// be traced back to a run.
type recordHandler struct {
	inner   slog.Handler
	bound   map[string]struct{}
	grouped bool
}

func newRecordHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &recordHandler{
		inner: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       lvl,
			AddSource:   addSource,
			ReplaceAttr: replaceRecordAttr,
		}),
	}
}

func replaceRecordAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			attr.Key = "ts"
			if attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return attr
		case slog.LevelKey:
			attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			return attr
		case slog.SourceKey:
			if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
				attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
			return attr
		}
	}
	if isSecretKey(attr.Key) && attr.Value.Kind() == slog.KindString && attr.Value.String() != "" {
		attr.Value = slog.StringValue("***")
	}
	return attr
}

// isSecretKey matches attribute keys that hold provider credentials.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return key == "authorization" || key == "api_key" || strings.HasSuffix(key, "_api_key")
}

func (h *recordHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *recordHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.grouped {
		return h.inner.Handle(ctx, record)
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return h.inner.Handle(ctx, record)
	}
	present := make(map[string]struct{}, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		present[a.Key] = struct{}{}
		return true
	})
	rec := record.Clone()
	for _, field := range fields {
		if _, ok := h.bound[field.Key]; ok {
			continue
		}
		if _, ok := present[field.Key]; ok {
			continue
		}
		rec.AddAttrs(field)
	}
	return h.inner.Handle(ctx, rec)
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for key := range h.bound {
		bound[key] = struct{}{}
	}
	if !h.grouped {
		for _, attr := range attrs {
			bound[attr.Key] = struct{}{}
		}
	}
	return &recordHandler{inner: h.inner.WithAttrs(attrs), bound: bound, grouped: h.grouped}
}

// WithGroup nests later attributes. Context fields are only stamped at the top
// level, so a grouped handler passes records through unchanged.
func (h *recordHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &recordHandler{inner: h.inner.WithGroup(name), bound: h.bound, grouped: true}
}
