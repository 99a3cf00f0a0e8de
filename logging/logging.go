// Package logging builds the process logger. Everything downstream
// speaks log/slog; this package only decides handler and level.
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

	"github.com/gookit/color"
)

func GetLoggerFromString(level string) *slog.Logger {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return GetLoggerFromLevel(slog.LevelDebug)
	case "WARN":
		return GetLoggerFromLevel(slog.LevelWarn)
	case "ERROR":
		return GetLoggerFromLevel(slog.LevelError)
	default:
		return GetLoggerFromLevel(slog.LevelInfo)
	}
}

func GetLoggerFromLevel(level slog.Level) *slog.Logger {
	return slog.New(&colorHandler{w: os.Stderr, level: level})
}

// colorHandler is a small human-oriented handler for terminals.
// Attributes are rendered key=value after the message, levels are
// colorized with gookit/color.
type colorHandler struct {
	mu    sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(record.Time.Format(time.TimeOnly))
	b.WriteByte(' ')
	b.WriteString(levelTag(record.Level))
	b.WriteByte(' ')
	b.WriteString(record.Message)
	for _, attr := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{w: h.w, level: h.level, attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)}
}

func (h *colorHandler) WithGroup(string) slog.Handler {
	return h
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.Red.Sprint("ERROR")
	case level >= slog.LevelWarn:
		return color.Yellow.Sprint("WARN")
	case level >= slog.LevelInfo:
		return color.Green.Sprint("INFO")
	default:
		return color.Gray.Sprint("DEBUG")
	}
}
