// Package hindsightlog is a thin leveled wrapper around the standard
// library's log package, following the prefixed log.Printf call-site
// convention used throughout the server's command-line entry points.
package hindsightlog

import (
	"log"
	"os"
)

// Logger writes leveled, component-prefixed messages to an underlying
// *log.Logger.
type Logger struct {
	component string
	out       *log.Logger
}

// New returns a Logger that prefixes every message with component.
func New(component string) *Logger {
	return &Logger{
		component: component,
		out:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level, format string, args ...interface{}) {
	l.out.Printf("["+level+"] "+l.component+": "+format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf("INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf("WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf("ERROR", format, args...)
}

// Fatal logs an error message and exits the process, matching
// log.Fatalf's behavior.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.out.Fatalf("[FATAL] "+l.component+": "+format, args...)
}
