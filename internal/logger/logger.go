// Package logger writes imgsearch diagnostics to stderr.
//
// Warnings and engine responses are always printed. Debug, Info and
// Section output traces the ingest and query pipelines and only appears
// with --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// responseLimit caps engine response bodies outside verbose mode.
const responseLimit = 512

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables pipeline tracing.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether pipeline tracing is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log output. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(always bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if always || verbose {
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// Debug traces pipeline internals.
func Debug(format string, args ...any) {
	write(false, "[DEBUG] ", format, args...)
}

// Section prints a pipeline stage header.
func Section(name string) {
	write(false, "\n=== ", "%s ===", name)
}

// Info reports pipeline progress.
func Info(format string, args ...any) {
	write(false, "[INFO] ", format, args...)
}

// Warn reports a recoverable problem. Always printed.
func Warn(format string, args ...any) {
	write(true, "[WARN] ", format, args...)
}

// Response prints a raw engine response body under label. Always printed;
// bodies longer than responseLimit are cut unless verbose.
func Response(label string, body []byte) {
	mu.RLock()
	defer mu.RUnlock()
	text := string(body)
	if !verbose && len(text) > responseLimit {
		text = fmt.Sprintf("%s... (%d bytes)", text[:responseLimit], len(body))
	}
	fmt.Fprintf(output, "[RESPONSE] %s: %s\n", label, text)
}
