package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLogBuffer collects JSON log records written concurrently by
// components under test.
type TestLogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Reset drops everything logged so far.
func (b *TestLogBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// Records decodes one JSON record per line.
func (b *TestLogBuffer) Records() ([]map[string]any, error) {
	var records []map[string]any
	scanner := bufio.NewScanner(bytes.NewBufferString(b.String()))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

// RecordsWithMessage returns the records logged with msg. It fails the test
// when the buffer holds something other than JSON records.
func (b *TestLogBuffer) RecordsWithMessage(t *testing.T, msg string) []map[string]any {
	t.Helper()
	records, err := b.Records()
	require.NoError(t, err, "log output is not JSON")

	var out []map[string]any
	for _, r := range records {
		if r[slog.MessageKey] == msg {
			out = append(out, r)
		}
	}
	return out
}

// NewTestLogger returns a debug level JSON logger writing to a fresh
// buffer. The default logger is left untouched.
func NewTestLogger(t *testing.T) (*TestLogBuffer, *slog.Logger) {
	t.Helper()
	buf := &TestLogBuffer{}
	return buf, New(buf, slog.LevelDebug)
}

// AssertLogContains checks that content appears anywhere in the log.
func AssertLogContains(t *testing.T, buf *TestLogBuffer, content string) {
	t.Helper()
	assert.Contains(t, buf.String(), content)
}

// AssertLogField checks that some record logged with msg carries field
// with the expected value. JSON numbers decode as float64.
func AssertLogField(t *testing.T, buf *TestLogBuffer, msg, field string, expected any) {
	t.Helper()
	records := buf.RecordsWithMessage(t, msg)
	if !assert.NotEmpty(t, records, "no record logged with message %q", msg) {
		return
	}
	for _, r := range records {
		if r[field] == expected {
			return
		}
	}
	assert.Failf(t, "log field not found",
		"no %q record has %s=%v; records: %v", msg, field, expected, records)
}
