// Package logging wraps log/slog with a compact colored console handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu    sync.Mutex
	level = new(slog.LevelVar)

	infoColor  = color.New(color.FgGreen).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()
)

// ColorTextHandler writes one line per record: LEVEL message key=value...
type ColorTextHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	attrs []slog.Attr
}

// NewColorTextHandler creates a handler writing to w.
func NewColorTextHandler(w io.Writer) *ColorTextHandler {
	return &ColorTextHandler{mu: &sync.Mutex{}, w: w}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ColorTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= level.Level()
}

// Handle formats and writes the record.
func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var lvl string
	switch {
	case r.Level >= slog.LevelError:
		lvl = errorColor("ERROR")
	case r.Level >= slog.LevelWarn:
		lvl = warnColor("WARN")
	case r.Level >= slog.LevelInfo:
		lvl = infoColor("INFO")
	default:
		lvl = debugColor("DEBUG")
	}

	var b strings.Builder
	b.WriteString(lvl)
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a handler that prefixes every record with attrs.
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ColorTextHandler{mu: h.mu, w: h.w, attrs: merged}
}

// WithGroup is a no-op; groups are flattened.
func (h *ColorTextHandler) WithGroup(string) slog.Handler {
	return h
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Format("15:04:05")
	case slog.KindFloat64:
		return fmt.Sprintf("%.3f", v.Float64())
	default:
		return v.String()
	}
}

// ParseLevel maps trace/debug/info/warn/error to a slog level. Unknown
// strings map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitWithLevel installs the colored handler on stderr as the slog default.
func InitWithLevel(lvl string) {
	SetOutput(os.Stderr)
	level.Set(ParseLevel(lvl))
}

// SetOutput redirects log output, e.g. while a terminal view owns stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	slog.SetDefault(slog.New(NewColorTextHandler(w)))
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { slog.Debug(msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { slog.Info(msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { slog.Warn(msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { slog.Error(msg, args...) }

// LogOperation runs fn, logging its start, outcome and duration.
func LogOperation(op, target string, fn func() error) error {
	start := time.Now()
	Debug("operation started", "op", op, "target", target)
	err := fn()
	if err != nil {
		Error("operation failed", "op", op, "target", target, "duration", time.Since(start), "error", err)
		return err
	}
	Info("operation finished", "op", op, "target", target, "duration", time.Since(start))
	return nil
}
