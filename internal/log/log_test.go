package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "[WARN] warn line")
	assert.Contains(t, out, "[ERROR] error line err=boom")
}

func TestKeyValues(t *testing.T) {
	buf := capture(t, LevelDebug)

	Info("window opened", "period", "daily 22:00 - 06:00", "count", 2, "dangling")

	out := buf.String()
	assert.Contains(t, out, `period="daily 22:00 - 06:00"`)
	assert.Contains(t, out, "count=2")
	assert.NotContains(t, out, "dangling")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, got)
}
