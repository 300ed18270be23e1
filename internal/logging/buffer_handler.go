package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// LogCallback receives every entry after it is stored.
type LogCallback func(entry LogEntry)

const defaultModule = "app"

// BufferHandler stores records in a RingBuffer for the console.
// The "module" attribute is lifted into LogEntry.Module; group members
// get dotted keys.
type BufferHandler struct {
	buffer *RingBuffer
	level  slog.Leveler
	module string
	attrs  map[string]any
	prefix string
}

// NewBufferHandler returns a handler that writes into buffer.
func NewBufferHandler(buffer *RingBuffer, level slog.Leveler) *BufferHandler {
	return &BufferHandler{
		buffer: buffer,
		level:  level,
		module: defaultModule,
		attrs:  map[string]any{},
	}
}

func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     h.module,
		Message:    r.Message,
		Attributes: maps.Clone(h.attrs),
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(&entry.Module, entry.Attributes, h.prefix, a)
		return true
	})

	h.buffer.Write(entry)
	if cb := currentCallback(); cb != nil {
		cb(entry)
	}
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := h.clone()
	for _, a := range attrs {
		next.put(&next.module, next.attrs, next.prefix, a)
	}
	return next
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *BufferHandler) clone() *BufferHandler {
	return &BufferHandler{
		buffer: h.buffer,
		level:  h.level,
		module: h.module,
		attrs:  maps.Clone(h.attrs),
		prefix: h.prefix,
	}
}

// put records a into attrs. A top-level "module" attribute sets *module instead.
func (h *BufferHandler) put(module *string, attrs map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if prefix == "" && a.Key == "module" {
		*module = a.Value.String()
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			h.put(module, attrs, prefix, member)
		}
		return
	}

	key := prefix + a.Key
	switch a.Value.Kind() {
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
			return
		}
		attrs[key] = a.Value.Any()
	default:
		attrs[key] = a.Value.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLogLine renders entry as "15:04:05.000 [LEVEL] [module] message k=v ...",
// attributes sorted by key.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s",
		entry.Timestamp.Format("15:04:05.000"),
		strings.ToUpper(entry.Level),
		entry.Module,
		entry.Message)

	for _, k := range slices.Sorted(maps.Keys(entry.Attributes)) {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
