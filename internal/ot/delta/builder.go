package delta

// Builder accumulates ops with the same normalization rules a Delta is
// expected to satisfy on the wire: adjacent retains/inserts/deletes of
// matching attributes merge, zero-length ops are dropped, and an insert
// landing right after a delete at the same position is reordered ahead of
// it so repeated composition converges on one canonical form.
type Builder struct {
	ops Delta
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Retain(n int, attrs Attrs) *Builder {
	if n <= 0 {
		return b
	}
	return b.Push(Retain(n, attrs))
}

func (b *Builder) Insert(content any, attrs Attrs) *Builder {
	if s, ok := content.(string); ok && s == "" {
		return b
	}
	return b.Push(Insert(content, attrs))
}

func (b *Builder) Delete(n int) *Builder {
	if n <= 0 {
		return b
	}
	return b.Push(Delete(n))
}

func (b *Builder) Push(op Op) *Builder {
	if op.Kind == KindRetain || op.Kind == KindDelete {
		if op.Count <= 0 {
			return b
		}
	}
	if op.Kind == KindInsert {
		if s, ok := op.Insert.(string); ok && s == "" {
			return b
		}
	}

	index := len(b.ops)
	if index > 0 {
		last := &b.ops[index-1]
		if op.Kind == KindDelete && last.Kind == KindDelete {
			last.Count += op.Count
			return b
		}
		// Prefer inserting before a trailing delete at the same position:
		// order doesn't matter semantically, and this keeps the canonical
		// form stable across repeated composition.
		if last.Kind == KindDelete && op.Kind == KindInsert {
			index--
			if index == 0 {
				b.ops = append(Delta{op}, b.ops...)
				return b
			}
			last = &b.ops[index-1]
		}
		if attrsEqual(last.Attrs, op.Attrs) {
			if op.Kind == KindInsert && last.Kind == KindInsert {
				ls, lok := last.Insert.(string)
				os, ook := op.Insert.(string)
				if lok && ook {
					last.Insert = ls + os
					return b
				}
			} else if op.Kind == KindRetain && last.Kind == KindRetain {
				last.Count += op.Count
				return b
			}
		}
	}
	if index == len(b.ops) {
		b.ops = append(b.ops, op)
	} else {
		tail := make(Delta, len(b.ops)-index)
		copy(tail, b.ops[index:])
		b.ops = append(b.ops[:index], op)
		b.ops = append(b.ops, tail...)
	}
	return b
}

// Chop drops a single trailing retain-with-no-attributes: a retain past the
// end of a delta is meaningless since there is nothing left to retain over.
func (b *Builder) Chop() *Builder {
	n := len(b.ops)
	if n > 0 {
		last := b.ops[n-1]
		if last.Kind == KindRetain && len(last.Attrs) == 0 {
			b.ops = b.ops[:n-1]
		}
	}
	return b
}

func (b *Builder) Delta() Delta {
	if b.ops == nil {
		return Delta{}
	}
	return b.ops
}

// Normalize rebuilds d through a Builder to merge/trim it into canonical
// form without changing its meaning.
func Normalize(d Delta) Delta {
	b := NewBuilder()
	for _, op := range d {
		b.Push(op)
	}
	return b.Chop().Delta()
}
