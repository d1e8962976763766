/*
Package prx is a packrat parser-combinator library.

Consists of subpackages:
  - parser: parsing primitives (literal and pattern matchers, sequences,
    alternatives, repetitions, lookaround, stack variables, forward references)
    that are assembled into a grammar graph and executed over a source document;
  - source: defines the source document used by the parser;
  - tree: the concrete syntax tree type produced by parsing, with functions
    to traverse, inspect, and serialize trees.

Typical usage is:

1. Build a parser graph from the primitives of the parser subpackage, either
by hand or with a grammar compiler that targets this library. Recursive rules
are expressed with forward references, resolved once before the first parse.

2. Create a Grammar for the graph. The Grammar owns all mutable state of a
parse run (memoization tables, variable stacks, error list) and is reset
between runs; it must not be shared between goroutines.

3. Call Parse. The result is always a syntax tree plus an ordered list of
diagnostics; syntax errors are recovered where possible and reported as
error nodes spliced into the tree, never as panics.
*/
package prx

import (
	"fmt"
)

// Error classes used by subpackages, each class contains up to 99 error codes:
const (
	GrammarErrors   = 1   // grammar graph construction and static checks
	SyntaxErrors    = 101 // syntax errors found in parsed documents
	VariableErrors  = 201 // stack variable capture and retrieval
	RecursionErrors = 301 // recursion depth and left recursion handling
	ParserErrors    = 401 // driving loop and engine failures
)

// Severity of a diagnostic.
type Severity int

const (
	Notice Severity = iota
	Warning
	Fault
	Fatal
)

func (s Severity) String () string {
	switch s {
	case Notice:
		return "notice"
	case Warning:
		return "warning"
	case Fault:
		return "error"
	default:
		return "fatal"
	}
}

// Error is the diagnostic type used by prx subpackages.
type Error struct {
	// Code contains non-zero error code.
	Code int

	// Severity contains the diagnostic severity, Notice by default.
	Severity Severity

	// Message contains non-empty error message.
	Message string

	// Pos contains absolute byte position in the parsed document.
	Pos int

	// Line and Col contain source position or 0, filled in by the driving
	// loop once a source document is known.
	Line, Col int
}

// NewError creates new Error structure.
func NewError (code int, severity Severity, pos int, msg string) *Error {
	return &Error{Code: code, Severity: severity, Pos: pos, Message: msg}
}

// FormatError creates new Error structure with a formatted message.
func FormatError (code int, severity Severity, pos int, msg string, params ...interface{}) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return NewError(code, severity, pos, msg)
}

// Error returns Error.Message prefixed with position information if present.
func (e *Error) Error () string {
	if e.Line != 0 && e.Col != 0 {
		return fmt.Sprintf("%s at line %d col %d: %s", e.Severity, e.Line, e.Col, e.Message)
	}
	return fmt.Sprintf("%s at %d: %s", e.Severity, e.Pos, e.Message)
}
