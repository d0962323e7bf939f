// Package obslog implements the router's per-request trace log: a
// best-effort, rotating plain-text appender that must never fail a
// request even if the write itself fails.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const maxSizeBytes = 10 * 1024 * 1024 // 10 MB

// Logger appends one line per router step to a rotating file. Writes are
// serialized and rollover renames the current file to ".1" before starting
// a fresh one.
type Logger struct {
	mu   sync.Mutex
	path string
	file *os.File
	size int64
}

// Open creates or appends to the trace log at path.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("obslog: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("obslog: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("obslog: stat log file: %w", err)
	}
	return &Logger{path: path, file: f, size: info.Size()}, nil
}

// Close releases the underlying file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Trace is one request's ordered step log, built up with Step and flushed
// with the logger's Write.
type Trace struct {
	RequestID string
	steps     []string
	start     time.Time
}

// NewTrace starts a trace for one request.
func NewTrace(requestID string) *Trace {
	return &Trace{RequestID: requestID, start: time.Now()}
}

// Step appends one labeled line with its time offset from trace start.
func (t *Trace) Step(label string) {
	t.steps = append(t.steps, fmt.Sprintf("[+%dms] %s", time.Since(t.start).Milliseconds(), label))
}

// Lines returns the accumulated step labels, used by /v1/route's trace
// array in the response body.
func (t *Trace) Lines() []string {
	out := make([]string, len(t.steps))
	copy(out, t.steps)
	return out
}

// Write appends a trace as one block to the log, rotating first if the
// file has crossed the size cap. A write failure is swallowed: observability
// must never fail the request it is describing.
func (l *Logger) Write(t *Trace) {
	l.mu.Lock()
	defer l.mu.Unlock()

	block := fmt.Sprintf("=== %s %s ===\n%s\n", t.RequestID, t.start.Format(time.RFC3339), strings.Join(t.steps, "\n"))

	if l.size+int64(len(block)) > maxSizeBytes {
		l.rotate()
	}

	n, err := l.file.WriteString(block)
	if err != nil {
		return
	}
	l.size += int64(n)
}

// rotate renames the current file to ".1" and opens a fresh one in its
// place. Caller must hold l.mu.
func (l *Logger) rotate() {
	l.file.Close()
	os.Rename(l.path, l.path+".1")
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	l.file = f
	l.size = 0
}
