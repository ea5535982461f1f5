// Completion: 100% - Execution tests complete
//go:build linux && (amd64 || arm64)

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

// compileAndRun executes src natively with the given stdin bytes and
// returns whatever the program wrote to stdout
func compileAndRun(t *testing.T, src, input string, optimize bool) (string, error) {
	t.Helper()

	ops, err := compileSource([]byte(src), optimize)
	if err != nil {
		t.Fatalf("compileSource(%q) failed: %v", src, err)
	}
	code, err := compileNative(ops, hostArch())
	if err != nil {
		t.Fatalf("compileNative(%q) failed: %v", src, err)
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatalf("Could not create input pipe: %v", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("Could not create output pipe: %v", err)
	}
	defer inR.Close()
	defer outR.Close()

	// The generated code blocks the locked thread in read(2) without the
	// scheduler knowing, so nothing running in this process can feed the
	// pipe concurrently. Fill it and close the write end up front; the
	// test inputs are far below the pipe buffer size.
	if _, err := inW.WriteString(input); err != nil {
		t.Fatalf("Could not fill input pipe: %v", err)
	}
	inW.Close()

	runErr := runNative(code, inR, outW)
	outW.Close()

	// all output is buffered in the pipe by now; drain it sequentially
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, outR); err != nil {
		t.Fatalf("Could not drain output pipe: %v", err)
	}
	return buf.String(), runErr
}

// runBoth runs src with and without the optimizer and checks that both
// paths produce the same expected output
func runBoth(t *testing.T, src, input, want string) {
	t.Helper()
	for _, optimize := range []bool{false, true} {
		got, err := compileAndRun(t, src, input, optimize)
		if err != nil {
			t.Errorf("optimize=%v: %q failed: %v", optimize, src, err)
			continue
		}
		if got != want {
			t.Errorf("optimize=%v: %q: expected %q, got %q", optimize, src, want, got)
		}
	}
}

func TestRunEcho(t *testing.T) {
	runBoth(t, ",.", "A", "A")
}

func TestRunHelloWorld(t *testing.T) {
	const hello = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	runBoth(t, hello, "", "Hello World!\n")
}

func TestRunClearLoop(t *testing.T) {
	runBoth(t, "+++++[-].", "", "\x00")
}

func TestRunMultiplyLoop(t *testing.T) {
	// 4*2 lands in the next cell, the source cell ends at zero
	runBoth(t, "++++[->++<]>.", "", "\x08")
	runBoth(t, "++++[->++<].", "", "\x00")
}

func TestRunCellWraparound(t *testing.T) {
	runBoth(t, strings.Repeat("+", 256)+".", "", "\x00")
}

func TestRunEOFStoresZero(t *testing.T) {
	// the cell is nonzero before the read so a zero output proves the
	// sentinel store happened
	runBoth(t, "+,.", "", "\x00")
}

func TestRunScanLoop(t *testing.T) {
	runBoth(t, "+>+<[>]+++.", "", "\x03")
}

func TestRunPointerUnderflowTraps(t *testing.T) {
	for _, optimize := range []bool{false, true} {
		_, err := compileAndRun(t, "<.", "", optimize)
		var trap *TrapError
		if !errors.As(err, &trap) {
			t.Errorf("optimize=%v: expected a trap error, got %v", optimize, err)
			continue
		}
		if trap.Status != statusPtrTrap {
			t.Errorf("optimize=%v: expected pointer trap status, got %d", optimize, trap.Status)
		}
	}
}

func TestRunScanLoopTrapsOutOfBounds(t *testing.T) {
	// a leftward scan starting at the base cell leaves the tape on its
	// first step; the closed-form scan must trap exactly like the open
	// loop would
	for _, optimize := range []bool{false, true} {
		_, err := compileAndRun(t, "+[<]", "", optimize)
		var trap *TrapError
		if !errors.As(err, &trap) {
			t.Errorf("optimize=%v: expected a trap error, got %v", optimize, err)
			continue
		}
		if trap.Status != statusPtrTrap {
			t.Errorf("optimize=%v: expected pointer trap status, got %d", optimize, trap.Status)
		}
	}
}

func TestRunEmptyProgram(t *testing.T) {
	runBoth(t, "", "", "")
}

func TestRunNestedLoops(t *testing.T) {
	// 3*4 via nested loops, printed as a raw byte
	runBoth(t, "+++[>++++[>+<-]<-]>>.", "", "\x0c")
}

func TestExecImageRejectsEmptyCode(t *testing.T) {
	img, err := newExecImage(nil)
	if err == nil {
		img.Close()
		t.Fatal("Expected an error for an empty code buffer")
	}
	var alloc *AllocationError
	if !errors.As(err, &alloc) {
		t.Errorf("Expected an allocation error, got %v", err)
	}
}
