// Package dlog provides the thin logger cmd/poet writes its run log with
// (it also satisfies bench.Printer for Result.Print), matching the dlog.New(path string, verbose bool) *Logger call-site
// shape used throughout the teacher codebase.
package dlog

import (
	"fmt"
	"log"
	"os"
)

// Logger wraps a standard library *log.Logger with a verbose gate:
// Println/Printf are no-ops unless verbose was set at construction,
// while Errorln/Errorf and Fatalf always print.
type Logger struct {
	*log.Logger
	verbose bool
}

// New opens path (truncating it) and returns a Logger writing to it. An
// empty path or "/dev/null" logs to os.DevNull. If the file (or
// os.DevNull) cannot be opened, the Logger writes to stderr instead.
func New(path string, verbose bool) *Logger {
	var out *os.File
	if path == "" || path == "/dev/null" {
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			out = os.Stderr
		} else {
			out = f
		}
	}
	return &Logger{
		Logger:  log.New(out, "", log.LstdFlags|log.Lmicroseconds),
		verbose: verbose,
	}
}

// Println logs v if the logger is verbose.
func (l *Logger) Println(v ...interface{}) {
	if l.verbose {
		l.Logger.Println(v...)
	}
}

// Printf logs format if the logger is verbose.
func (l *Logger) Printf(format string, v ...interface{}) {
	if l.verbose {
		l.Logger.Printf(format, v...)
	}
}

// Errorln always logs, regardless of the verbose gate.
func (l *Logger) Errorln(v ...interface{}) {
	l.Logger.Println(append([]interface{}{"ERROR:"}, v...)...)
}

// Errorf always logs, regardless of the verbose gate.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.Logger.Print("ERROR: " + fmt.Sprintf(format, v...))
}
