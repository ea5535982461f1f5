// Completion: 100% - Error handling complete, clear and helpful messages
package main

import (
	"fmt"
	"strings"
)

// errors.go - Error taxonomy and process exit codes
//
// Three user-facing failure classes: SyntaxError (refuse to compile),
// AllocationError (host refused executable memory, fatal, no retry) and
// TrapError (the running program tripped a runtime check). Everything
// else is an internal defect and is surfaced as a plain error so it
// fails loudly instead of being swallowed.

// Process exit codes
const (
	exitOK         = 0
	exitUsage      = 1
	exitSyntax     = 2
	exitAllocation = 3
	exitTrap       = 4
	exitFileRead   = 5
)

// SyntaxErrorKind classifies bracket mismatches
type SyntaxErrorKind int

const (
	UnclosedLeftBracket SyntaxErrorKind = iota
	UnexpectedRightBracket
)

func (k SyntaxErrorKind) String() string {
	switch k {
	case UnclosedLeftBracket:
		return "unclosed left bracket"
	case UnexpectedRightBracket:
		return "unexpected right bracket"
	default:
		return "unknown"
	}
}

// SyntaxError reports an unmatched bracket with its position in the source
type SyntaxError struct {
	Kind   SyntaxErrorKind
	Offset int // byte offset into the source
	Line   int // 1-based
	Col    int // 1-based
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at %d:%d (byte %d)", e.Kind, e.Line, e.Col, e.Offset)
}

// Format returns the error with an optional ANSI-colored header
func (e *SyntaxError) Format(useColor bool) string {
	var sb strings.Builder
	if useColor {
		sb.WriteString("\033[1;31m")
	}
	sb.WriteString("syntax error: ")
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString(e.Kind.String())
	if useColor {
		sb.WriteString("\033[1;34m")
	}
	fmt.Fprintf(&sb, "\n  --> %d:%d (byte offset %d)", e.Line, e.Col, e.Offset)
	if useColor {
		sb.WriteString("\033[0m")
	}
	return sb.String()
}

// AllocationError means the host refused a request for executable memory
type AllocationError struct {
	Size int   // requested size in bytes, after page rounding
	Err  error // underlying mmap/mprotect error, if any
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot allocate %d bytes of executable memory: %v", e.Size, e.Err)
	}
	return fmt.Sprintf("cannot allocate %d bytes of executable memory", e.Size)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Status codes returned in the native function's return register
const (
	statusOK      = 0
	statusPtrTrap = 1
	statusByteIO  = 2
)

// TrapError reports a runtime fault raised by the generated code
type TrapError struct {
	Status uint64
}

func (e *TrapError) Error() string {
	switch e.Status {
	case statusPtrTrap:
		return "runtime trap: tape pointer moved out of bounds"
	case statusByteIO:
		return "runtime trap: byte I/O failed"
	default:
		return fmt.Sprintf("runtime trap: unknown status %d", e.Status)
	}
}

// exitCodeFor maps an error from the pipeline to the process exit code
func exitCodeFor(err error) int {
	switch err.(type) {
	case nil:
		return exitOK
	case *SyntaxError:
		return exitSyntax
	case *AllocationError:
		return exitAllocation
	case *TrapError:
		return exitTrap
	default:
		return exitUsage
	}
}
