// Completion: 100% - IR module complete
package main

import "fmt"

// ir.go - Intermediate representation for Brainfuck programs
//
// The lexer produces a flat []Op stream. The optimizer and both code
// generators consume it with exhaustive switches over OpKind, so adding
// an operation forces every consumer to be revisited.

// OpKind identifies an IR operation
type OpKind int

const (
	OpMovePtr       OpKind = iota // move the tape pointer by Delta cells
	OpAddVal                      // add Delta (mod 256) to the current cell
	OpOutput                      // write the current cell to the output stream
	OpInput                       // read one byte into the current cell
	OpLoopStart                   // '[' - Match holds the index of the matching ']'
	OpLoopEnd                     // ']' - Match holds the index of the matching '['
	OpSetVal                      // store Val into the current cell
	OpScanUntilZero               // move the pointer by Delta until a zero cell is found
	OpMultiplyAdd                 // add current cell * Factor into the cell at Offset
)

func (k OpKind) String() string {
	switch k {
	case OpMovePtr:
		return "moveptr"
	case OpAddVal:
		return "addval"
	case OpOutput:
		return "output"
	case OpInput:
		return "input"
	case OpLoopStart:
		return "loopstart"
	case OpLoopEnd:
		return "loopend"
	case OpSetVal:
		return "setval"
	case OpScanUntilZero:
		return "scan"
	case OpMultiplyAdd:
		return "muladd"
	default:
		return "unknown"
	}
}

// Op is a single IR operation. Which fields are meaningful depends on Kind:
// Delta for OpMovePtr/OpAddVal/OpScanUntilZero, Match for the loop pair,
// Val for OpSetVal, Offset and Factor for OpMultiplyAdd.
type Op struct {
	Kind   OpKind
	Delta  int
	Match  int
	Offset int
	Val    byte
	Factor byte
}

func (op Op) String() string {
	switch op.Kind {
	case OpMovePtr, OpAddVal, OpScanUntilZero:
		return fmt.Sprintf("%s(%d)", op.Kind, op.Delta)
	case OpLoopStart, OpLoopEnd:
		return fmt.Sprintf("%s(match=%d)", op.Kind, op.Match)
	case OpSetVal:
		return fmt.Sprintf("%s(%d)", op.Kind, op.Val)
	case OpMultiplyAdd:
		return fmt.Sprintf("%s(offset=%d, factor=%d)", op.Kind, op.Offset, op.Factor)
	default:
		return op.Kind.String()
	}
}

// rematch recomputes the Match field of every loop pair in ops, in place.
// The optimizer builds fresh streams whose loop indices have shifted, so
// the pairing is redone with the same stack discipline the lexer uses.
// A dangling bracket here is an internal error: the input stream was
// validated before any rewriting took place.
func rematch(ops []Op) error {
	var stack []int
	for i := range ops {
		switch ops[i].Kind {
		case OpLoopStart:
			stack = append(stack, i)
		case OpLoopEnd:
			if len(stack) == 0 {
				return fmt.Errorf("internal error: unmatched ']' at IR index %d after rewriting", i)
			}
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			ops[j].Match = i
			ops[i].Match = j
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("internal error: unmatched '[' at IR index %d after rewriting", stack[len(stack)-1])
	}
	return nil
}
