// Package delta is the wire and storage representation of a rich-text edit:
// an ordered sequence of retain/insert/delete operations over a position
// cursor, generalized from gateway/backend/internal/ot/delta in the teacher
// repo to carry formatting attributes and embeddable insert content.
package delta

import "unicode/utf8"

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Attrs is a formatting attribute map, e.g. {"bold": true, "color": "red"}.
// A nil value for a key means "remove this attribute" when composed over
// an existing one.
type Attrs map[string]any

// Op is a single retain/insert/delete step. Insert carries either a string
// (rich text) or an embed object (e.g. map[string]any{"image": url}).
type Op struct {
	Kind   Kind  `json:"kind"`
	Count  int   `json:"count,omitempty"`
	Insert any   `json:"insert,omitempty"`
	Attrs  Attrs `json:"attrs,omitempty"`
}

// Delta is the sole content and edit representation exchanged on the wire
// and persisted in the operation log.
type Delta []Op

func Retain(n int, attrs Attrs) Op { return Op{Kind: KindRetain, Count: n, Attrs: attrs} }
func Insert(content any, attrs Attrs) Op {
	return Op{Kind: KindInsert, Insert: content, Attrs: attrs}
}
func Delete(n int) Op { return Op{Kind: KindDelete, Count: n} }

// Length returns the number of position units an op spans: Count for
// retain/delete, rune length for a string insert, 1 for an embed insert.
func (op Op) Length() int {
	switch op.Kind {
	case KindRetain, KindDelete:
		return op.Count
	case KindInsert:
		if s, ok := op.Insert.(string); ok {
			return utf8.RuneCountInString(s)
		}
		return 1
	default:
		return 0
	}
}

// IsEmbed reports whether this insert carries a non-string embed object.
func (op Op) IsEmbed() bool {
	if op.Kind != KindInsert {
		return false
	}
	_, ok := op.Insert.(string)
	return !ok
}

// Length is the total number of position units the delta spans after
// retains/inserts are accounted for (i.e. the length of the resulting
// document, not the base document).
func (d Delta) Length() int {
	n := 0
	for _, op := range d {
		if op.Kind == KindDelete {
			continue
		}
		n += op.Length()
	}
	return n
}

// Equal is structural equality on the normalized form. Callers should
// normalize (via Compose with an identity delta, or Chop) before comparing
// deltas produced by different code paths.
func Equal(a, b Delta) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !opEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func opEqual(a, b Op) bool {
	if a.Kind != b.Kind || a.Count != b.Count {
		return false
	}
	if !attrsEqual(a.Attrs, b.Attrs) {
		return false
	}
	switch a.Kind {
	case KindInsert:
		as, aok := a.Insert.(string)
		bs, bok := b.Insert.(string)
		if aok != bok {
			return false
		}
		if aok {
			return as == bs
		}
		return embedEqual(a.Insert, b.Insert)
	default:
		return true
	}
}

func embedEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		return false
	}
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		bv, ok := bm[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}

func attrsEqual(a, b Attrs) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}

// Clone returns a deep-enough copy: op values and attribute maps are
// copied, embed objects are shared by reference (treated as immutable).
func (d Delta) Clone() Delta {
	out := make(Delta, len(d))
	for i, op := range d {
		out[i] = op
		if op.Attrs != nil {
			cp := make(Attrs, len(op.Attrs))
			for k, v := range op.Attrs {
				cp[k] = v
			}
			out[i].Attrs = cp
		}
	}
	return out
}
