package progress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LogBuffer is a thread-safe ring of formatted log lines, shown below the
// progress bar while the screen owns the terminal.
type LogBuffer struct {
	lines []string
	index int
	count int
	mutex sync.RWMutex
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{lines: make([]string, size)}
}

func (lb *LogBuffer) Add(line string) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	lb.lines[lb.index] = line
	lb.index = (lb.index + 1) % len(lb.lines)
	if lb.count < len(lb.lines) {
		lb.count++
	}
}

// Recent returns up to maxCount lines, oldest first.
func (lb *LogBuffer) Recent(maxCount int) []string {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	count := lb.count
	if maxCount > 0 && maxCount < count {
		count = maxCount
	}

	result := make([]string, count)
	for i := 0; i < count; i++ {
		result[count-1-i] = lb.lines[(lb.index-1-i+len(lb.lines))%len(lb.lines)]
	}
	return result
}

// LogHandler is a slog.Handler feeding a LogBuffer.
type LogHandler struct {
	buffer *LogBuffer
	level  slog.Leveler
	attrs  []slog.Attr
}

func NewLogHandler(buffer *LogBuffer, level slog.Leveler) *LogHandler {
	return &LogHandler{buffer: buffer, level: level}
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(levelTag(record.Level))
	sb.WriteByte(' ')
	sb.WriteString(record.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	record.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	})

	h.buffer.Add(sb.String())
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LogHandler{buffer: h.buffer, level: h.level, attrs: merged}
}

// WithGroup is not supported; group names are dropped.
func (h *LogHandler) WithGroup(string) slog.Handler {
	return h
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERR"
	case level >= slog.LevelWarn:
		return "WRN"
	case level >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}
