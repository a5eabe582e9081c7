// Package log provides the relay's leveled logger. Each level is a singleton
// with printf-style (.F), line (.Ln) and structured dump (.S) methods, in the
// style used throughout the teacher codebase's call sites (log.I.F(...),
// log.E.Ln(...), log.I.S(...)).
package log

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
)

// Level identifies a logging severity.
type Level int32

const (
	Fatal Level = iota
	Error
	Warn
	Info
	Debug
	Trace
)

func (l Level) String() string {
	switch l {
	case Fatal:
		return "fatal"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	default:
		return "unknown"
	}
}

func ParseLevel(s string) (l Level, ok bool) {
	switch s {
	case "fatal":
		return Fatal, true
	case "error":
		return Error, true
	case "warn":
		return Warn, true
	case "info":
		return Info, true
	case "debug":
		return Debug, true
	case "trace":
		return Trace, true
	}
	return Info, false
}

var current atomic.Int32

func init() { current.Store(int32(Info)) }

// SetLevel sets the process-wide minimum level that will be printed.
func SetLevel(l Level) { current.Store(int32(l)) }

// Logger is a single severity's print surface.
type Logger struct {
	level  Level
	prefix string
	color  *color.Color
	out    io.Writer
}

func (lg *Logger) enabled() bool { return int32(lg.level) <= current.Load() }

// F prints a formatted line at this logger's level.
func (lg *Logger) F(format string, args ...any) {
	if !lg.enabled() {
		return
	}
	lg.color.Fprintf(lg.out, "["+lg.prefix+"] "+format+"\n", args...)
}

// Ln prints its arguments space-separated at this logger's level.
func (lg *Logger) Ln(args ...any) {
	if !lg.enabled() {
		return
	}
	line := fmt.Sprintln(args...)
	lg.color.Fprintf(lg.out, "[%s] %s", lg.prefix, line)
}

// S dumps its arguments with github.com/davecgh/go-spew for deep structural
// inspection, the way the teacher's log.I.S(...) call sites do.
func (lg *Logger) S(args ...any) {
	if !lg.enabled() {
		return
	}
	lg.color.Fprintf(lg.out, "[%s]\n%s", lg.prefix, spew.Sdump(args...))
}

var (
	F = &Logger{level: Fatal, prefix: "FTL", color: color.New(color.FgHiRed, color.Bold), out: os.Stderr}
	E = &Logger{level: Error, prefix: "ERR", color: color.New(color.FgRed), out: os.Stderr}
	W = &Logger{level: Warn, prefix: "WRN", color: color.New(color.FgYellow), out: os.Stderr}
	I = &Logger{level: Info, prefix: "INF", color: color.New(color.FgCyan), out: os.Stdout}
	D = &Logger{level: Debug, prefix: "DBG", color: color.New(color.FgHiBlack), out: os.Stdout}
	T = &Logger{level: Trace, prefix: "TRC", color: color.New(color.FgHiBlack), out: os.Stdout}
)
