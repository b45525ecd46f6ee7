// Package debug provides a minimal, mutex-guarded trace logger for the
// indexing pipeline. Output is off by default; enable it with the
// TAILINDEX_DEBUG environment variable or by building with
// -ldflags "-X github.com/tobiaslane/tailindex/internal/debug.EnableDebug=true".
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug is a build-time flag, overridable via -ldflags.
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
)

// SetOutput sets the writer debug lines are sent to. Pass nil to disable.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether debug output is currently turned on.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("TAILINDEX_DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Log emits a structured "[DEBUG:component] ..." line when enabled.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogIndexing is a convenience wrapper for the indexing component.
func LogIndexing(format string, args ...interface{}) {
	Log("INDEX", format, args...)
}

// LogWorker is a convenience wrapper for the worker orchestrator.
func LogWorker(format string, args ...interface{}) {
	Log("WORKER", format, args...)
}
