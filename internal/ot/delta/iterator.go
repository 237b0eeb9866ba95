package delta

// Iterator walks a Delta's ops, able to consume a prefix of an op shorter
// than its full length (splitting retains/deletes by count, and string
// inserts by rune) so two deltas can be walked in lockstep by the engine.
type Iterator struct {
	ops    Delta
	index  int
	offset int // rune/unit offset already consumed within ops[index]
}

func NewIterator(d Delta) *Iterator {
	return &Iterator{ops: d}
}

// MaxLen is returned by PeekLength when the iterator is exhausted, so
// callers can take min() against it freely.
const MaxLen = int(^uint(0) >> 1)

func (it *Iterator) Done() bool {
	return it.index >= len(it.ops)
}

// PeekLength returns the remaining length of the current op, or MaxLen if
// there is no current op.
func (it *Iterator) PeekLength() int {
	if it.index >= len(it.ops) {
		return MaxLen
	}
	return it.ops[it.index].Length() - it.offset
}

// PeekKind returns the Kind of the current op, or "" if exhausted.
func (it *Iterator) PeekKind() Kind {
	if it.index >= len(it.ops) {
		return ""
	}
	return it.ops[it.index].Kind
}

// PeekAttrs returns the Attrs of the current op, or nil if exhausted.
func (it *Iterator) PeekAttrs() Attrs {
	if it.index >= len(it.ops) {
		return nil
	}
	return it.ops[it.index].Attrs
}

// Next consumes up to n units (or the whole remaining op if n is negative
// or exceeds it) of the current op and returns that slice as a standalone
// Op whose Count/Insert reflects only the consumed portion.
func (it *Iterator) Next(n int) Op {
	if it.index >= len(it.ops) {
		return Op{Kind: KindRetain, Count: MaxLen}
	}
	op := it.ops[it.index]
	remaining := op.Length() - it.offset
	if n < 0 || n > remaining {
		n = remaining
	}

	var out Op
	switch op.Kind {
	case KindRetain:
		out = Op{Kind: KindRetain, Count: n, Attrs: op.Attrs}
	case KindDelete:
		out = Op{Kind: KindDelete, Count: n}
	case KindInsert:
		if s, ok := op.Insert.(string); ok {
			rs := []rune(s)
			out = Op{Kind: KindInsert, Insert: string(rs[it.offset : it.offset+n]), Attrs: op.Attrs}
		} else {
			out = Op{Kind: KindInsert, Insert: op.Insert, Attrs: op.Attrs}
			n = 1
		}
	}

	if n == remaining {
		it.index++
		it.offset = 0
	} else {
		it.offset += n
	}
	return out
}

// Rest returns every remaining op, including a partially-consumed current
// one, as a fresh Delta.
func (it *Iterator) Rest() Delta {
	if it.index >= len(it.ops) {
		return Delta{}
	}
	out := Delta{}
	if it.offset > 0 {
		out = append(out, it.Next(-1))
	}
	out = append(out, it.ops[it.index:]...)
	it.index = len(it.ops)
	it.offset = 0
	return out
}
