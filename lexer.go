// Completion: 100% - Lexer/IR builder complete
package main

// lexer.go - Source scanner and IR builder
//
// Single pass over the raw source bytes. Anything outside the Brainfuck
// instruction alphabet is a comment and is skipped. Runs of '+'/'-' and
// of '<'/'>' are coalesced into one AddVal/MovePtr with a summed delta;
// a run that cancels out entirely is dropped again. Loop brackets are
// matched with an explicit stack so both ends of every pair carry the
// index of the other before anything downstream runs.

// pendingLoop records an open '[' while scanning: where it sits in the
// IR stream and where it came from in the source.
type pendingLoop struct {
	irIndex int
	offset  int
	line    int
	col     int
}

// lexProgram scans src and returns the coalesced IR stream, or a
// *SyntaxError naming the position of an unmatched bracket.
func lexProgram(src []byte) ([]Op, error) {
	ops := make([]Op, 0, len(src)/2)
	var stack []pendingLoop

	line, col := 1, 0
	for i := 0; i < len(src); i++ {
		col++
		switch src[i] {
		case '\n':
			line++
			col = 0
		case '+':
			ops = appendDelta(ops, OpAddVal, 1)
		case '-':
			ops = appendDelta(ops, OpAddVal, -1)
		case '>':
			ops = appendDelta(ops, OpMovePtr, 1)
		case '<':
			ops = appendDelta(ops, OpMovePtr, -1)
		case '.':
			ops = append(ops, Op{Kind: OpOutput})
		case ',':
			ops = append(ops, Op{Kind: OpInput})
		case '[':
			stack = append(stack, pendingLoop{irIndex: len(ops), offset: i, line: line, col: col})
			ops = append(ops, Op{Kind: OpLoopStart})
		case ']':
			if len(stack) == 0 {
				return nil, &SyntaxError{Kind: UnexpectedRightBracket, Offset: i, Line: line, Col: col}
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			ops[open.irIndex].Match = len(ops)
			ops = append(ops, Op{Kind: OpLoopEnd, Match: open.irIndex})
		}
	}

	if len(stack) != 0 {
		open := stack[len(stack)-1]
		return nil, &SyntaxError{Kind: UnclosedLeftBracket, Offset: open.offset, Line: open.line, Col: open.col}
	}
	return ops, nil
}

// appendDelta merges a pointer or value step into the previous operation
// when that operation has the same kind. Only '+'/'-' and '<'/'>' emit
// these kinds and every other instruction emits an op of another kind,
// so a trailing op of the same kind always belongs to the current run.
// A run that sums to zero is removed outright.
func appendDelta(ops []Op, kind OpKind, delta int) []Op {
	if n := len(ops); n > 0 && ops[n-1].Kind == kind {
		ops[n-1].Delta += delta
		if ops[n-1].Delta == 0 {
			ops = ops[:n-1]
		}
		return ops
	}
	return append(ops, Op{Kind: kind, Delta: delta})
}
