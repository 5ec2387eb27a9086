package core

import (
	"log"
	"os"
)

// Logger is a small leveled wrapper around the standard library
// logger, grounded on the texture of the teacher's request-logging
// middleware (method/outcome lines, no structured fields).
type Logger struct {
	debug bool
	quiet bool
	std   *log.Logger
}

// NewLogger creates a Logger writing to stderr. quiet suppresses Info
// output; debug enables Debug output, whether or not quiet is set.
func NewLogger(quiet, debug bool) *Logger {
	return &Logger{
		debug: debug,
		quiet: quiet,
		std:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.std.Printf("DEBUG "+format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.quiet {
		l.std.Printf("INFO "+format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Printf("WARN "+format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.std.Printf("ERROR "+format, args...)
}
