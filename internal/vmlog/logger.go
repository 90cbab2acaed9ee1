// Package vmlog provides a small leveled logging facility for the list
// machine CLI, API-compatible with the teacher interpreter's hand-rolled
// internal/logio.Logger (SetOutput/Leveledf/ErrorIf/ExitCode) but backed by
// logrus for formatting and level filtering, per the domain stack's logging
// choice (see SPEC_FULL.md).
package vmlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper around a *logrus.Logger that additionally tracks
// whether any error has been reported, so that ExitCode can report a
// nonzero process exit status the way the original listmachine's main does
// for usage and runtime errors.
type Logger struct {
	entry    *logrus.Logger
	errored  bool
	exitCode int
}

// New returns a Logger writing to out at the given level (e.g. logrus.InfoLevel,
// or logrus.TraceLevel when -trace is enabled).
func New(out io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &Logger{entry: l}
}

// SetOutput redirects the logger's output stream.
func (log *Logger) SetOutput(w io.Writer) { log.entry.SetOutput(w) }

// Leveledf returns a printf-style function that logs at the named level,
// matching the instruction tracer's use of "TRACE" in gothird's main.go.
func (log *Logger) Leveledf(level string) func(mess string, args ...interface{}) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	return func(mess string, args ...interface{}) {
		log.entry.Logf(lvl, mess, args...)
	}
}

// ErrorIf logs a non-nil error at Error level and marks the logger errored,
// mirroring gothird's log.ErrorIf(vm.Run(ctx)) call in main. The exit code is
// set to -1, matching §6's "exit code ... -1 on usage error, illegal
// instruction, or null car/cdr" -- distinct from the separate nonzero abort
// status used for heap exhaustion (see main.go's IsOOM handling).
func (log *Logger) ErrorIf(err error) {
	if err == nil {
		return
	}
	log.entry.Errorf("%v", err)
	log.errored = true
	log.exitCode = -1
}

// ExitCode returns the process exit code implied by any errors logged so far.
func (log *Logger) ExitCode() int { return log.exitCode }
