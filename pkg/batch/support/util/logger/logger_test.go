package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := Level()
	SetOutput(buf)
	SetLogLevel(level)
	t.Cleanup(func() {
		current.Store(int32(prev))
		SetOutput(nopWriter{})
	})
	return buf
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":  LevelDebug,
		"TRACE":  LevelDebug,
		"Info":   LevelInfo,
		"":       LevelInfo,
		"WARN":   LevelWarn,
		"error":  LevelError,
		"SILENT": LevelSilent,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, "WARN")

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestSilentSuppressesEverything(t *testing.T) {
	buf := captureOutput(t, "SILENT")

	Errorf("should not appear")
	assert.Empty(t, buf.String())
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	buf := captureOutput(t, "chatty")

	assert.Equal(t, LevelInfo, Level())
	assert.Contains(t, buf.String(), "unknown log level 'chatty'")
}

func TestShortFuncName(t *testing.T) {
	assert.Equal(t, "runner.NewFlowJob", shortFuncName("github.com/acme/batch/runner.NewFlowJob.func1"))
	assert.Equal(t, "main.run", shortFuncName("main.run"))
}
