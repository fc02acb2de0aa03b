package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*AgentLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	cfg.AddSource = false
	return NewLogger(cfg), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestAgentLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("also shown")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["msg"])
	assert.Equal(t, "also shown", entries[1]["msg"])
}

func TestAgentLogger_ContextualAttrs(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	scoped := logger.
		WithComponent("agent").
		WithSession("s1", "t1").
		WithContext("tenant", "acme")
	scoped.Info("agent.turn.start", "model_calls", 2)

	// The original logger must not observe the cloned context.
	logger.Info("bare")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "agent", entries[0]["component"])
	assert.Equal(t, "s1", entries[0]["session_id"])
	assert.Equal(t, "t1", entries[0]["turn_id"])
	assert.Equal(t, "acme", entries[0]["tenant"])
	assert.Equal(t, float64(2), entries[0]["model_calls"])

	assert.NotContains(t, entries[1], "component")
	assert.NotContains(t, entries[1], "tenant")
}

func TestAgentLogger_LogToolCall(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogToolCall("get_book_list", 12*time.Millisecond, true, nil)
	logger.LogToolCall("get_book_list", 3*time.Millisecond, false, errors.New("catalog offline"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Tool execution completed", entries[0]["msg"])
	assert.Equal(t, "get_book_list", entries[0]["tool_name"])
	assert.Equal(t, true, entries[0]["success"])
	assert.Equal(t, "Tool execution failed", entries[1]["msg"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "catalog offline", entries[1]["error"])
}

func TestAgentLogger_LogModelCall(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogModelCall("gpt-4o-mini", 128, 40*time.Millisecond, true, nil)
	logger.LogModelCall("gpt-4o-mini", 0, time.Millisecond, false, errors.New("rate limited"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Model call completed", entries[0]["msg"])
	assert.Equal(t, float64(128), entries[0]["token_count"])
	assert.Equal(t, "Model call failed", entries[1]["msg"])
	assert.Equal(t, "rate limited", entries[1]["error"])
}

func TestAgentLogger_LogTurn(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.LogTurn("done", 3, 250*time.Millisecond, nil)
	logger.LogTurn("failed", 1, time.Millisecond, errors.New("model unavailable"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Turn completed", entries[0]["msg"])
	assert.Equal(t, "done", entries[0]["status"])
	assert.Equal(t, float64(3), entries[0]["model_calls"])
	assert.Equal(t, "Turn failed", entries[1]["msg"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestAgentLogger_ErrorWithStack(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	logger.ErrorWithStack(errors.New("boom"), "tool %s crashed", "get_book_list")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "tool get_book_list crashed", entries[0]["msg"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Contains(t, entries[0]["stack_trace"], "goroutine")
}

func TestAgentLogger_StartTimer(t *testing.T) {
	logger, buf := newBufferLogger(LogLevelInfo)

	stop := logger.StartTimer("session.load")
	stop()

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Operation completed", entries[0]["msg"])
	assert.Equal(t, "session.load", entries[0]["operation"])
	assert.Contains(t, entries[0], "duration")
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})

	logger.Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "key=value")
}

func TestNoOpLogger(t *testing.T) {
	var logger Logger = NoOpLogger{}
	logger.Debug("ignored")
	logger.Info("ignored")
	logger.Warn("ignored")
	logger.Error("ignored")
}
