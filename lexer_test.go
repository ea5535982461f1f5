// Completion: 100% - Lexer tests complete
package main

import "testing"

// mustLex parses src and fails the test on any syntax error
func mustLex(t *testing.T, src string) []Op {
	t.Helper()
	ops, err := lexProgram([]byte(src))
	if err != nil {
		t.Fatalf("lexProgram(%q) failed: %v", src, err)
	}
	return ops
}

// TestLexBasicProgram checks the IR of a small complete program
func TestLexBasicProgram(t *testing.T) {
	ops := mustLex(t, "+[,.]")
	want := []Op{
		{Kind: OpAddVal, Delta: 1},
		{Kind: OpLoopStart, Match: 4},
		{Kind: OpInput},
		{Kind: OpOutput},
		{Kind: OpLoopEnd, Match: 1},
	}
	if len(ops) != len(want) {
		t.Fatalf("Expected %d operations, got %d: %v", len(want), len(ops), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("Operation %d: expected %v, got %v", i, want[i], ops[i])
		}
	}
}

// TestLexCoalescing checks that runs of +/- and </> fold into one operation
func TestLexCoalescing(t *testing.T) {
	tests := []struct {
		src   string
		kind  OpKind
		delta int
	}{
		{"+++++", OpAddVal, 5},
		{"+++--", OpAddVal, 1},
		{"--+", OpAddVal, -1},
		{">>><<", OpMovePtr, 1},
		{"<<<", OpMovePtr, -3},
	}
	for _, tt := range tests {
		ops := mustLex(t, tt.src)
		if len(ops) != 1 {
			t.Errorf("lexProgram(%q): expected 1 operation, got %d: %v", tt.src, len(ops), ops)
			continue
		}
		if ops[0].Kind != tt.kind || ops[0].Delta != tt.delta {
			t.Errorf("lexProgram(%q): expected %s(%d), got %v", tt.src, tt.kind, tt.delta, ops[0])
		}
	}
}

// TestLexDropsCancelledRuns checks that a run summing to zero disappears
func TestLexDropsCancelledRuns(t *testing.T) {
	for _, src := range []string{"+-", "-+", "><", "<>", "++--", ">+-<"} {
		if ops := mustLex(t, src); len(ops) != 0 {
			t.Errorf("lexProgram(%q): expected an empty stream, got %v", src, ops)
		}
	}
}

// TestLexIgnoresComments checks that non-instruction bytes are skipped
// and that runs coalesce across them
func TestLexIgnoresComments(t *testing.T) {
	ops := mustLex(t, "add two + and + nothing else!")
	if len(ops) != 1 || ops[0].Kind != OpAddVal || ops[0].Delta != 2 {
		t.Errorf("Expected a single addval(2), got %v", ops)
	}
}

// TestLexNestedLoops checks match indices across nesting
func TestLexNestedLoops(t *testing.T) {
	ops := mustLex(t, "[[]]")
	if ops[0].Match != 3 || ops[3].Match != 0 {
		t.Errorf("Outer loop mismatched: %v", ops)
	}
	if ops[1].Match != 2 || ops[2].Match != 1 {
		t.Errorf("Inner loop mismatched: %v", ops)
	}
}

// TestLexUnexpectedRightBracket checks the error and its position
func TestLexUnexpectedRightBracket(t *testing.T) {
	_, err := lexProgram([]byte("+]"))
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("Expected *SyntaxError, got %v", err)
	}
	if se.Kind != UnexpectedRightBracket {
		t.Errorf("Expected UnexpectedRightBracket, got %v", se.Kind)
	}
	if se.Offset != 1 || se.Line != 1 || se.Col != 2 {
		t.Errorf("Expected position 1:2 (byte 1), got %d:%d (byte %d)", se.Line, se.Col, se.Offset)
	}
}

// TestLexUnclosedLeftBracket checks that the error points at the '['
func TestLexUnclosedLeftBracket(t *testing.T) {
	_, err := lexProgram([]byte("[+"))
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("Expected *SyntaxError, got %v", err)
	}
	if se.Kind != UnclosedLeftBracket {
		t.Errorf("Expected UnclosedLeftBracket, got %v", se.Kind)
	}
	if se.Offset != 0 || se.Line != 1 || se.Col != 1 {
		t.Errorf("Expected position 1:1 (byte 0), got %d:%d (byte %d)", se.Line, se.Col, se.Offset)
	}
}

// TestLexErrorPositionAcrossLines checks line/column tracking
func TestLexErrorPositionAcrossLines(t *testing.T) {
	_, err := lexProgram([]byte("++\n+]"))
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("Expected *SyntaxError, got %v", err)
	}
	if se.Offset != 4 || se.Line != 2 || se.Col != 2 {
		t.Errorf("Expected position 2:2 (byte 4), got %d:%d (byte %d)", se.Line, se.Col, se.Offset)
	}
}

// TestLexEmptySource checks that an empty program is valid
func TestLexEmptySource(t *testing.T) {
	if ops := mustLex(t, ""); len(ops) != 0 {
		t.Errorf("Expected an empty stream, got %v", ops)
	}
}
