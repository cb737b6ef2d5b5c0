package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one "key=value" line per record for local development.
// Attributes bound with WithAttrs are rendered once and reused as a prefix.
type prettyHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Leveler
	src   bool
	color bool

	bound  string
	groups string
}

// valueStyles colour well-known keys. Keys are matched on the leaf name so
// grouped attributes keep their styling.
var valueStyles = map[string]func(v slog.Value, color bool) string{
	"method": func(v slog.Value, color bool) string {
		return colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(v.String())), color)
	},
	"path": func(v slog.Value, color bool) string {
		return paint(strings.TrimSpace(v.String()), ansiCyan, color)
	},
	"route": func(v slog.Value, color bool) string {
		return paint(strings.TrimSpace(v.String()), ansiCyan, color)
	},
	"status": func(v slog.Value, color bool) string {
		if n, ok := valueToInt64(v); ok {
			return colorizeStatusCode(int(n), color)
		}
		return plainValue(v)
	},
	"status_class": func(v slog.Value, color bool) string {
		return colorizeStatusClass(strings.TrimSpace(v.String()), color)
	},
	"duration_ms": func(v slog.Value, color bool) string {
		if n, ok := valueToInt64(v); ok {
			return colorizeDurationMS(n, color)
		}
		return plainValue(v)
	},
	"result": func(v slog.Value, color bool) string {
		return colorizeResult(strings.ToLower(strings.TrimSpace(v.String())), color)
	},
	"err":        func(v slog.Value, color bool) string { return paint(plainValue(v), ansiRed, color) },
	"request_id": dimValue,
	"session_id": dimValue,
	"user_id":    dimValue,
	"task_id":    dimValue,
}

// Short display names for noisy request-log keys.
var keyAliases = map[string]string{
	"status_class": "class",
	"duration_ms":  "duration",
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{
		out:   w,
		mu:    &sync.Mutex{},
		level: slog.LevelInfo,
		color: color,
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.src = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ts=%s lvl=%s msg=%s",
		paint(ts.Format("15:04:05.000"), ansiDim, h.color),
		levelTag(r.Level, h.color),
		paint(r.Message, ansiBright, h.color),
	)

	if h.src && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			b.WriteString(" src=")
			b.WriteString(paint(filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line), ansiDim, h.color))
		}
	}

	b.WriteString(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.groups, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	for _, a := range attrs {
		h.writeAttr(&b, h.groups, a)
	}
	cp := *h
	cp.bound = h.bound + b.String()
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = joinKey(h.groups, name)
	return &cp
}

func (h *prettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)

	if a.Value.Kind() == slog.KindGroup {
		// Inline groups (empty key) flatten into the parent.
		if key != "" {
			prefix = joinKey(prefix, key)
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, prefix, ga)
		}
		return
	}
	if key == "" {
		return
	}

	display := key
	if alias, ok := keyAliases[key]; ok {
		display = alias
	}

	b.WriteByte(' ')
	b.WriteString(joinKey(prefix, display))
	b.WriteByte('=')
	if style, ok := valueStyles[key]; ok {
		b.WriteString(style(a.Value, h.color))
		return
	}
	b.WriteString(plainValue(a.Value))
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func dimValue(v slog.Value, color bool) string {
	return paint(plainValue(v), ansiDim, color)
}

// plainValue formats v and quotes it when it would break key=value parsing.
func plainValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		// Int, uint, float, bool and duration share slog's own formatting.
		s = v.String()
	}

	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

var levelTags = []struct {
	min   slog.Level
	label string
	code  string
}{
	{slog.LevelError, "[ERROR]", ansiRed},
	{slog.LevelWarn, "[WARN]", ansiYellow},
	{slog.LevelInfo, "[INFO]", ansiBlue},
}

func levelTag(level slog.Level, color bool) string {
	for _, t := range levelTags {
		if level >= t.min {
			return paint(t.label, t.code, color)
		}
	}
	return paint("[DEBUG]", ansiMagenta, color)
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true // #nosec G115 -- log values only.
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
