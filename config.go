// Completion: 100% - Utility module complete
package main

import "github.com/xyproto/env/v2"

// config.go - Environment configuration
//
// Knobs that do not warrant command-line flags are read from the
// environment: BFJIT_TAPE_SIZE, BFJIT_VERBOSE and the conventional
// NO_COLOR.

// The classic Brainfuck tape is 30000 wrapping byte cells
const defaultTapeSize = 30000

// VerboseMode enables diagnostics on stderr; -v/--verbose also sets it
var VerboseMode = env.Bool("BFJIT_VERBOSE")

// tapeSize returns the number of tape cells for this run
func tapeSize() int {
	if n := env.Int("BFJIT_TAPE_SIZE", defaultTapeSize); n > 0 {
		return n
	}
	return defaultTapeSize
}

// colorEnabled reports whether error output may use ANSI colors
func colorEnabled() bool {
	return !env.Bool("NO_COLOR")
}
