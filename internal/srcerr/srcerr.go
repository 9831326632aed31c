// Package srcerr implements the compiler's single error contract: every
// stage reports a byte position plus a message, and the sink renders the
// offending source line with a caret before the process exits.
package srcerr

import (
	"fmt"
	"os"
	"strings"
)

// Error carries a byte offset into the source buffer and a message. It
// satisfies the error interface so it can flow through normal Go error
// returns before being handed to a Sink for fatal reporting.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Pos, e.Msg)
}

// New constructs a positioned error.
func New(pos int, format string, args ...interface{}) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Sink is the abstract interface every stage reports through. With
// StderrSink there is no recovery: the first error reported aborts the
// compilation. RecordingSink instead records the report and returns.
type Sink interface {
	Fatal(pos int, format string, args ...interface{})
}

// StderrSink prints a positioned message with a caret under the offending
// byte, against the given source buffer, then exits the process with
// status 1. This is the only implementation used by the CLI; tests use
// a RecordingSink instead so they don't call os.Exit.
type StderrSink struct {
	Source string
}

func (s *StderrSink) Fatal(pos int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	row, col, line := locate(s.Source, pos)
	fmt.Fprintf(os.Stderr, "%d:%d: error: %s\n", row, col, msg)
	fmt.Fprintf(os.Stderr, "%s\n", line)
	fmt.Fprintf(os.Stderr, "%s^\n", strings.Repeat(" ", col-1))
	os.Exit(1)
}

// RecordingSink collects fatal reports instead of exiting, for use by
// tests that want to inspect the errors.
type RecordingSink struct {
	Source  string
	Reports []*Error
}

func (s *RecordingSink) Fatal(pos int, format string, args ...interface{}) {
	s.Reports = append(s.Reports, New(pos, format, args...))
}

func (s *RecordingSink) HasErrors() bool {
	return len(s.Reports) > 0
}

// locate scans from the start of the buffer counting newlines to produce
// a (row, col, line-text) triple, used only for display.
func locate(src string, pos int) (row, col int, line string) {
	row = 1
	lineStart := 0
	for i := 0; i < pos && i < len(src); i++ {
		if src[i] == '\n' {
			row++
			lineStart = i + 1
		}
	}
	lineEnd := len(src)
	for i := lineStart; i < len(src); i++ {
		if src[i] == '\n' {
			lineEnd = i
			break
		}
	}
	col = pos - lineStart + 1
	return row, col, src[lineStart:lineEnd]
}
