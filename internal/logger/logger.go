// Package logger provides verbose logging for sercha-ask.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr so users can follow the research pipeline.
// Errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(always bool, level, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose && !always {
		return
	}
	fmt.Fprintf(output, "["+level+"] "+prefix+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(false, "DEBUG", "", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(false, "INFO", "", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	write(false, "WARN", "", format, args...)
}

// Error prints a message regardless of verbose mode.
func Error(format string, args ...any) {
	write(true, "ERROR", "", format, args...)
}

// Scope tags every line with a fixed label, such as a research run ID,
// so concurrent runs can be told apart.
type Scope struct {
	prefix string
}

// For returns a Scope that prefixes lines with label.
func For(label string) Scope {
	if label == "" {
		return Scope{}
	}
	return Scope{prefix: label + ": "}
}

// Debug prints a scoped message if verbose mode is enabled.
func (s Scope) Debug(format string, args ...any) {
	write(false, "DEBUG", s.prefix, format, args...)
}

// Info prints a scoped message if verbose mode is enabled.
func (s Scope) Info(format string, args ...any) {
	write(false, "INFO", s.prefix, format, args...)
}

// Warn prints a scoped message if verbose mode is enabled.
func (s Scope) Warn(format string, args ...any) {
	write(false, "WARN", s.prefix, format, args...)
}

// Error prints a scoped message regardless of verbose mode.
func (s Scope) Error(format string, args ...any) {
	write(true, "ERROR", s.prefix, format, args...)
}
