// Completion: 100% - Loop idiom recognition implemented and working
package main

import "sort"

// optimizer.go - IR optimization passes
//
// Rewrites recognizable loop bodies into closed-form operations:
// - Clear loop    [-] / [+]        -> SetVal(0)
// - Scan loop     [>] / [<]        -> ScanUntilZero(step)
// - Multiply loop [->+<] and kin   -> MultiplyAdd per target, then SetVal(0)
//
// Matching is exact and all-or-nothing per loop: a body with one extra
// operation falls through untouched, which keeps the rewritten stream
// equivalent instead of merely plausible. The input stream is never
// mutated; a fresh stream is built and its loop matches recomputed.

// optimizeIR returns an equivalent, typically shorter IR stream.
func optimizeIR(ops []Op) ([]Op, error) {
	out := rewriteRange(ops, 0, make([]Op, 0, len(ops)))
	if err := rematch(out); err != nil {
		return nil, err
	}
	return out, nil
}

// rewriteRange walks ops, copying non-loop operations through and
// dispatching every balanced loop to rewriteLoop. Match fields index
// the original full stream, so base (the offset of ops within that
// stream) is subtracted to stay index-correct while recursing into
// loop bodies. Appends to out.
func rewriteRange(ops []Op, base int, out []Op) []Op {
	for i := 0; i < len(ops); i++ {
		op := ops[i]
		if op.Kind != OpLoopStart {
			out = append(out, op)
			continue
		}
		end := op.Match - base
		out = rewriteLoop(ops[i+1:end], base+i+1, out)
		i = end
	}
	return out
}

// rewriteLoop appends the closed form of one loop body when an idiom
// matches, or the loop itself (with its body recursively rewritten)
// when none does. Idioms are tried most-specific first. Loop bodies
// containing inner loops can never match: every idiom is built from
// MovePtr/AddVal alone. base is the offset of body in the full stream.
func rewriteLoop(body []Op, base int, out []Op) []Op {
	if clearLoop(body) {
		return append(out, Op{Kind: OpSetVal, Val: 0})
	}
	if step, ok := scanLoop(body); ok {
		return append(out, Op{Kind: OpScanUntilZero, Delta: step})
	}
	if targets, ok := multiplyLoop(body); ok {
		for _, t := range targets {
			out = append(out, Op{Kind: OpMultiplyAdd, Offset: t.offset, Factor: t.factor})
		}
		return append(out, Op{Kind: OpSetVal, Val: 0})
	}
	out = append(out, Op{Kind: OpLoopStart})
	out = rewriteRange(body, base, out)
	return append(out, Op{Kind: OpLoopEnd})
}

// clearLoop reports whether body is a single AddVal whose delta has odd
// parity. Odd steps generate the full cycle mod 256, so the cell always
// reaches zero after finitely many iterations; the net effect is zero.
func clearLoop(body []Op) bool {
	return len(body) == 1 && body[0].Kind == OpAddVal && body[0].Delta&1 != 0
}

// scanLoop reports whether body is a single one-cell pointer move.
func scanLoop(body []Op) (int, bool) {
	if len(body) == 1 && body[0].Kind == OpMovePtr && (body[0].Delta == 1 || body[0].Delta == -1) {
		return body[0].Delta, true
	}
	return 0, false
}

// mulTarget is one destination cell of a multiply/copy loop.
type mulTarget struct {
	offset int
	factor byte
}

// multiplyLoop matches bodies built solely from MovePtr/AddVal where the
// pointer returns to its starting cell, the starting cell is decremented
// by exactly one per iteration, and at least one other cell is adjusted.
// Each such body runs the loop cell's value times, so the net effect is
// target += cell * factor for every target, then cell = 0.
func multiplyLoop(body []Op) ([]mulTarget, bool) {
	offset := 0
	deltas := make(map[int]int)
	for _, op := range body {
		switch op.Kind {
		case OpMovePtr:
			offset += op.Delta
		case OpAddVal:
			deltas[offset] += op.Delta
		default:
			return nil, false
		}
	}
	if offset != 0 || deltas[0] != -1 || len(deltas) < 2 {
		return nil, false
	}
	targets := make([]mulTarget, 0, len(deltas)-1)
	for off, d := range deltas {
		if off == 0 {
			continue
		}
		if d == 0 {
			// a cancelled-out target adds nothing; keep the match exact
			return nil, false
		}
		targets = append(targets, mulTarget{offset: off, factor: byte(d)})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].offset < targets[j].offset })
	return targets, true
}
