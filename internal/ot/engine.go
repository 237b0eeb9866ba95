// Package ot holds the pure operational-transformation functions the rest
// of the service builds on: transform, compose, invert, and the catch-up
// fold transformMultiple. They are total over structurally valid deltas and
// never touch I/O, a store, or a lock — generalized from the teacher's
// gateway/backend/internal/ot/delta package and piece_table.go (which only
// applied deltas to a buffer) into the full set spec.md §4.1 requires.
package ot

import (
	"fmt"

	"syncdoc/internal/ot/delta"
)

// ProtocolError signals a structurally malformed delta: an op with a
// negative count, an insert with neither a string nor a map embed, etc.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("ot: protocol error: %s", e.Reason) }

func validate(d delta.Delta) error {
	for _, op := range d {
		switch op.Kind {
		case delta.KindRetain, delta.KindDelete:
			if op.Count < 0 {
				return &ProtocolError{Reason: fmt.Sprintf("%s with negative count %d", op.Kind, op.Count)}
			}
		case delta.KindInsert:
			if op.Insert == nil {
				return &ProtocolError{Reason: "insert with nil content"}
			}
			if s, ok := op.Insert.(string); ok && s == "" {
				return &ProtocolError{Reason: "insert with empty string content"}
			}
			if _, isStr := op.Insert.(string); !isStr {
				if _, isEmbed := op.Insert.(map[string]any); !isEmbed {
					return &ProtocolError{Reason: fmt.Sprintf("insert with unsupported content type %T", op.Insert)}
				}
			}
		default:
			return &ProtocolError{Reason: fmt.Sprintf("unknown op kind %q", op.Kind)}
		}
	}
	return nil
}

// Compose returns the delta produced by applying d to base: a single delta
// equivalent to applying base then d in sequence. Preserves the
// total-length invariant (Length(Compose(base,d)) applied over base's
// source yields the same length base.Length() + net length change from d).
func Compose(base, d delta.Delta) (delta.Delta, error) {
	if err := validate(base); err != nil {
		return nil, err
	}
	if err := validate(d); err != nil {
		return nil, err
	}

	baseIt := delta.NewIterator(base)
	otherIt := delta.NewIterator(d)
	b := delta.NewBuilder()

	// If d opens with a plain retain (no attrs), any inserts at the head of
	// base pass straight through untouched — they're ahead of the position
	// d starts transforming from.
	if otherIt.PeekKind() == delta.KindRetain && len(otherIt.PeekAttrs()) == 0 {
		firstLeft := otherIt.PeekLength()
		for baseIt.PeekKind() == delta.KindInsert && baseIt.PeekLength() <= firstLeft {
			firstLeft -= baseIt.PeekLength()
			b.Push(baseIt.Next(-1))
		}
		if consumed := otherIt.PeekLength() - firstLeft; consumed > 0 {
			otherIt.Next(consumed)
		}
	}

	for !baseIt.Done() || !otherIt.Done() {
		switch {
		case otherIt.PeekKind() == delta.KindInsert:
			b.Push(otherIt.Next(-1))
		case baseIt.PeekKind() == delta.KindDelete:
			b.Push(baseIt.Next(-1))
		default:
			length := minLen(baseIt.PeekLength(), otherIt.PeekLength())
			baseOp := baseIt.Next(length)
			otherOp := otherIt.Next(length)
			switch {
			case otherOp.Kind == delta.KindRetain:
				if baseOp.Kind == delta.KindRetain {
					b.Push(delta.Retain(length, delta.ComposeAttrs(baseOp.Attrs, otherOp.Attrs, true)))
				} else {
					b.Push(delta.Insert(baseOp.Insert, delta.ComposeAttrs(baseOp.Attrs, otherOp.Attrs, false)))
				}
			case otherOp.Kind == delta.KindDelete && baseOp.Kind == delta.KindRetain:
				b.Push(otherOp)
			// otherOp delete against baseOp insert/delete: the insert is
			// dropped entirely (never reaches the output); two deletes
			// over the same base region collapse to nothing further since
			// baseOp.Kind == KindDelete was already handled above.
			}
		}
	}
	return b.Chop().Delta(), nil
}

// Transform returns a delta equivalent to b but safe to apply after a,
// given both started from the same base state. priority=true means a wins
// position ties (a's insertions land before b's at the same index).
func Transform(a, b delta.Delta, priority bool) (delta.Delta, error) {
	if err := validate(a); err != nil {
		return nil, err
	}
	if err := validate(b); err != nil {
		return nil, err
	}

	aIt := delta.NewIterator(a)
	bIt := delta.NewIterator(b)
	out := delta.NewBuilder()

	for !aIt.Done() || !bIt.Done() {
		switch {
		case aIt.PeekKind() == delta.KindInsert && (priority || bIt.PeekKind() != delta.KindInsert):
			out.Retain(aIt.Next(-1).Length(), nil)
		case bIt.PeekKind() == delta.KindInsert:
			out.Push(bIt.Next(-1))
		default:
			length := minLen(aIt.PeekLength(), bIt.PeekLength())
			aOp := aIt.Next(length)
			bOp := bIt.Next(length)
			switch {
			case aOp.Kind == delta.KindDelete:
				// a already removed this range; b's op over it is moot,
				// whether b was retaining or also deleting it.
			case bOp.Kind == delta.KindDelete:
				out.Push(bOp)
			default:
				out.Retain(length, delta.TransformAttrs(aOp.Attrs, bOp.Attrs, priority))
			}
		}
	}
	return out.Chop().Delta(), nil
}

// Invert returns the delta that, composed after d applied to base,
// reproduces base.
func Invert(d, base delta.Delta) (delta.Delta, error) {
	if err := validate(d); err != nil {
		return nil, err
	}
	if err := validate(base); err != nil {
		return nil, err
	}

	out := delta.NewBuilder()
	baseIt := delta.NewIterator(base)

	for _, op := range d {
		switch {
		case op.Kind == delta.KindInsert:
			out.Delete(op.Length())
		case op.Kind == delta.KindRetain && len(op.Attrs) == 0:
			out.Retain(op.Count, nil)
			advance(baseIt, op.Count)
		default:
			slice := sliceOps(baseIt, op.Length())
			for _, baseOp := range slice {
				switch op.Kind {
				case delta.KindDelete:
					out.Push(baseOp)
				case delta.KindRetain:
					out.Retain(baseOp.Length(), delta.InvertAttrs(op.Attrs, baseOp.Attrs))
				}
			}
		}
	}
	return out.Chop().Delta(), nil
}

// TransformMultiple threads incoming through committed in order: at each
// step the accumulator is treated as the newer op and the committed entry
// as the earlier one, so every committed op wins positional ties over the
// client's op. The result is safe to apply after every entry in committed.
func TransformMultiple(incoming delta.Delta, committed []delta.Delta) (delta.Delta, error) {
	acc := incoming
	for _, c := range committed {
		next, err := Transform(c, acc, true)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// advance skips n units forward in it without collecting the consumed ops.
func advance(it *delta.Iterator, n int) {
	for n > 0 && !it.Done() {
		take := minLen(n, it.PeekLength())
		it.Next(take)
		n -= take
	}
}

// sliceOps consumes exactly n units from it and returns them as individual
// ops (not merged), for Invert's per-base-op attribute inversion.
func sliceOps(it *delta.Iterator, n int) delta.Delta {
	out := delta.Delta{}
	for n > 0 && !it.Done() {
		take := minLen(n, it.PeekLength())
		out = append(out, it.Next(take))
		n -= take
	}
	return out
}
