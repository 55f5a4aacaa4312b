package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := Setup("info", "json", &buf)
	log.Debug("hidden")
	log.Info("poll done", "component", "poller", "skus", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "poll done", rec["msg"])
	assert.Equal(t, "poller", rec["component"])
	assert.Equal(t, log, slog.Default())
}

func TestSetupText(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup("debug", "text", &buf).Debug("resolved", "sku", "A1")
	assert.Contains(t, buf.String(), "msg=resolved")
	assert.Contains(t, buf.String(), "sku=A1")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncWriterFlushesOnClose(t *testing.T) {
	out := &lockedBuffer{}
	w := NewAsyncWriter(out, 16)

	p := []byte("first\n")
	_, err := w.Write(p)
	require.NoError(t, err)
	copy(p, "XXXXX\n")
	_, _ = w.Write([]byte("second\n"))

	require.NoError(t, w.Close())
	assert.Equal(t, "first\nsecond\n", out.String())

	n, err := w.Write([]byte("late\n"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, w.Close())
}
