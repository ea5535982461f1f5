// Completion: 100% - CLI interface complete, all flags working
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
)

// A Brainfuck compiler that JITs straight to native machine code for
// x86_64 and aarch64 on Linux

const versionString = "bfjit 1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: bfjit [options] FILE

Compiles the Brainfuck program in FILE to native machine code and runs
it against standard input/output.

Exit codes:
  0  normal program termination
  2  syntax error (unmatched bracket)
  3  executable memory could not be allocated
  4  runtime trap (tape pointer excursion or failed byte I/O)
  5  FILE could not be read

Options:
`)
	flag.PrintDefaults()
}

func main() {
	var optimizeFlag = flag.Bool("O", false, "run the loop idiom optimizer before code generation")
	var optimizeLong = flag.Bool("optimize", false, "run the loop idiom optimizer before code generation")
	var verbose = flag.Bool("v", false, "verbose mode (show IR and codegen statistics)")
	var verboseLong = flag.Bool("verbose", false, "verbose mode (show IR and codegen statistics)")
	var versionShort = flag.Bool("V", false, "print version information and exit")
	var version = flag.Bool("version", false, "print version information and exit")
	flag.Usage = usage
	flag.Parse()

	if *version || *versionShort {
		fmt.Println(versionString)
		os.Exit(exitOK)
	}

	// Use whichever form was specified
	VerboseMode = VerboseMode || *verbose || *verboseLong
	optimize := *optimizeFlag || *optimizeLong

	if flag.NArg() != 1 {
		usage()
		os.Exit(exitUsage)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfjit: %v\n", err)
		os.Exit(exitFileRead)
	}

	if err := compileAndRunProgram(src, optimize); err != nil {
		if se, ok := err.(*SyntaxError); ok {
			fmt.Fprintln(os.Stderr, se.Format(colorEnabled()))
		} else {
			fmt.Fprintf(os.Stderr, "bfjit: %v\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

// compileSource turns raw source bytes into a validated IR stream,
// optionally routed through the optimizer.
func compileSource(src []byte, optimize bool) ([]Op, error) {
	ops, err := lexProgram(src)
	if err != nil {
		return nil, err
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "lexer: %d coalesced IR operations\n", len(ops))
	}
	if optimize {
		before := len(ops)
		if ops, err = optimizeIR(ops); err != nil {
			return nil, err
		}
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "optimizer: %d -> %d IR operations\n", before, len(ops))
		}
	}
	return ops, nil
}

// compileAndRunProgram drives the whole pipeline against stdin/stdout
func compileAndRunProgram(src []byte, optimize bool) error {
	ops, err := compileSource(src, optimize)
	if err != nil {
		return err
	}
	arch := hostArch()
	if arch == ArchUnknown {
		return fmt.Errorf("no code generator for host architecture %s", runtime.GOARCH)
	}
	code, err := compileNative(ops, arch)
	if err != nil {
		return err
	}
	return runNative(code, os.Stdin, os.Stdout)
}
