package testutil

import (
	"bytes"
	"io"
	"sync"

	"github.com/dtroode/credsync/internal/logger"
)

// MakeNoopLogger returns a logger that drops everything.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithOptions(logger.Options{Output: io.Discard})
}

// LogBuffer collects log output from concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// MakeBufferLogger returns a debug-level JSON logger and the buffer it writes to.
func MakeBufferLogger() (*logger.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return logger.NewWithOptions(logger.Options{Level: -4, Format: "json", Output: buf}), buf
}
