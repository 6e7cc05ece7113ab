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

// LogCallback receives every entry written to the ring buffer. The api
// package uses it to fan entries out to SSE clients.
type LogCallback func(entry LogEntry)

// BufferHandler turns records into LogEntry values for the ring buffer and
// the log callback. Sinks are looked up per record, so handlers built
// before Initialize start recording once it runs.
type BufferHandler struct {
	reg    *registry
	level  slog.Leveler
	module string
	attrs  map[string]any // from WithAttrs, keys already prefixed
	prefix string
}

// NewBufferHandler returns a handler recording into the package buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return newBufferHandler(std, level)
}

func newBufferHandler(r *registry, level slog.Leveler) *BufferHandler {
	return &BufferHandler{reg: r, level: level, module: "app", attrs: map[string]any{}}
}

func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer, callback := h.reg.sinks()
	if buffer == nil && callback == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     h.module,
		Message:    r.Message,
		Attributes: maps.Clone(h.attrs),
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == "module" {
			entry.Module = a.Value.String()
		} else {
			putEntryAttr(entry.Attributes, h.prefix, a)
		}
		return true
	})

	if buffer != nil {
		buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = maps.Clone(h.attrs)
	for _, a := range attrs {
		if h.prefix == "" && a.Key == "module" {
			c.module = a.Value.String()
			continue
		}
		putEntryAttr(c.attrs, h.prefix, a)
	}
	return &c
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

// putEntryAttr stores a under prefix+key, flattening groups with dots.
// Values are kept JSON friendly.
func putEntryAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range v.Group() {
			putEntryAttr(dst, prefix, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}

	key := prefix + a.Key
	switch v.Kind() {
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = v.Any()
		}
	default:
		dst[key] = v.Any()
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

// FormatLogLine renders an entry the way the text handler would, with
// attributes sorted by key.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s",
		entry.Timestamp.Format(time.RFC3339Nano),
		strings.ToUpper(entry.Level),
		entry.Module,
		entry.Message)
	for _, k := range slices.Sorted(maps.Keys(entry.Attributes)) {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
