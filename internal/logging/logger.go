package logging

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the process logger and installs it as the slog default.
func Setup(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// AsyncWriter hands log lines to a background goroutine so a slow terminal
// never stalls the poll loop. Lines are dropped when the buffer is full.
type AsyncWriter struct {
	out     io.Writer
	lines   chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewAsyncWriter(out io.Writer, size int) *AsyncWriter {
	if size <= 0 {
		size = 1000
	}
	w := &AsyncWriter{
		out:   out,
		lines: make(chan []byte, size),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		for line := range w.lines {
			_, _ = w.out.Write(line)
		}
	}()

	return w
}

func (w *AsyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return len(p), nil
	}

	line := make([]byte, len(p))
	copy(line, p)

	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *AsyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close flushes queued lines and stops the writer goroutine.
func (w *AsyncWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.lines)
		w.mu.Unlock()
	})
	<-w.done
	return nil
}
