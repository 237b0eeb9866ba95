package ot

import (
	"testing"

	"syncdoc/internal/ot/delta"
)

// applyToString applies d to src the way a client would apply an incoming
// delta to its text buffer. It exists only to give the property tests below
// an independent way to check two deltas produce the same document.
func applyToString(t *testing.T, src string, d delta.Delta) string {
	t.Helper()
	rs := []rune(src)
	pos := 0
	out := make([]rune, 0, len(rs))
	for _, op := range d {
		switch op.Kind {
		case delta.KindRetain:
			if pos+op.Count > len(rs) {
				t.Fatalf("retain %d past end of %q at pos %d", op.Count, src, pos)
			}
			out = append(out, rs[pos:pos+op.Count]...)
			pos += op.Count
		case delta.KindDelete:
			pos += op.Count
		case delta.KindInsert:
			s, ok := op.Insert.(string)
			if !ok {
				t.Fatalf("applyToString only supports string inserts, got %T", op.Insert)
			}
			out = append(out, []rune(s)...)
		}
	}
	out = append(out, rs[pos:]...)
	return string(out)
}

func mustCompose(t *testing.T, base, d delta.Delta) delta.Delta {
	t.Helper()
	out, err := Compose(base, d)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	return out
}

func mustTransform(t *testing.T, a, b delta.Delta, priority bool) delta.Delta {
	t.Helper()
	out, err := Transform(a, b, priority)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	return out
}

func TestComposeSequentialEdits(t *testing.T) {
	src := "Hello World"
	d1 := delta.Delta{delta.Retain(5, nil), delta.Insert(",", nil), delta.Retain(6, nil)}
	want := applyToString(t, src, d1)

	got := applyToString(t, src, mustCompose(t, delta.Delta{}, d1))
	if got != want {
		t.Fatalf("compose against identity base: got %q, want %q", got, want)
	}
}

func TestComposeAssociativity(t *testing.T) {
	src := "ab"
	d1 := delta.Delta{delta.Insert("X", nil), delta.Retain(2, nil)}
	s1 := applyToString(t, src, d1) // "Xab"
	d2 := delta.Delta{delta.Retain(1, nil), delta.Insert("Y", nil), delta.Retain(2, nil)}
	s2 := applyToString(t, s1, d2) // "XYab"
	d3 := delta.Delta{delta.Delete(1), delta.Retain(3, nil)}
	s3 := applyToString(t, s2, d3) // "Yab"

	left := mustCompose(t, mustCompose(t, d1, d2), d3)
	right := mustCompose(t, d1, mustCompose(t, d2, d3))

	leftStr := applyToString(t, src, left)
	rightStr := applyToString(t, src, right)
	if leftStr != s3 || rightStr != s3 {
		t.Fatalf("compose(compose(d1,d2),d3)=%q compose(d1,compose(d2,d3))=%q, both want %q", leftStr, rightStr, s3)
	}
}

func TestTransformDiamondProperty(t *testing.T) {
	src := "ab"
	a := delta.Delta{delta.Delete(1), delta.Retain(1, nil)}     // -> "b"
	b := delta.Delta{delta.Retain(2, nil), delta.Insert("Z", nil)} // -> "abZ"

	aPrime := mustTransform(t, b, a, true)
	bPrime := mustTransform(t, a, b, false)

	viaA := applyToString(t, applyToString(t, src, a), bPrime)
	viaB := applyToString(t, applyToString(t, src, b), aPrime)

	if viaA != viaB {
		t.Fatalf("diamond property violated: via a-first=%q, via b-first=%q", viaA, viaB)
	}
	if viaA != "bZ" {
		t.Fatalf("converged result = %q, want %q", viaA, "bZ")
	}
}

func TestTransformPriorityBreaksInsertTies(t *testing.T) {
	a := delta.Delta{delta.Insert("A", nil)}
	b := delta.Delta{delta.Insert("B", nil)}

	// priority=true: a (the first argument) keeps its position ahead of b.
	bAfterA := mustTransform(t, a, b, true)
	got := applyToString(t, applyToString(t, "", a), bAfterA)
	if got != "AB" {
		t.Fatalf("priority=true should keep a ahead of b, got %q", got)
	}

	// priority=false: b jumps ahead of a at the tied position instead.
	bAfterA = mustTransform(t, a, b, false)
	got = applyToString(t, applyToString(t, "", a), bAfterA)
	if got != "BA" {
		t.Fatalf("priority=false should let b move ahead of a, got %q", got)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	content := delta.Delta{delta.Insert("ab", nil)}
	d := delta.Delta{delta.Insert("X", nil), delta.Retain(2, nil)}

	newContent := mustCompose(t, content, d)

	inv, err := Invert(d, content)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	restored := mustCompose(t, newContent, inv)
	if !delta.Equal(delta.Normalize(restored), delta.Normalize(content)) {
		t.Fatalf("invert did not round-trip: got %+v, want %+v", restored, content)
	}
}

func TestInvertPreservesAttributes(t *testing.T) {
	content := delta.Delta{delta.Insert("ab", delta.Attrs{"bold": true})}
	d := delta.Delta{delta.Retain(2, delta.Attrs{"bold": false})}

	newContent := mustCompose(t, content, d)
	inv, err := Invert(d, content)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	restored := mustCompose(t, newContent, inv)
	if !delta.Equal(delta.Normalize(restored), delta.Normalize(content)) {
		t.Fatalf("attribute invert did not round-trip: got %+v, want %+v", restored, content)
	}
}

func TestTransformMultipleChainsInOrder(t *testing.T) {
	committed := []delta.Delta{
		{delta.Insert("1", nil)},
		{delta.Retain(1, nil), delta.Insert("2", nil)},
	}
	incoming := delta.Delta{delta.Insert("X", nil)}

	got, err := TransformMultiple(incoming, committed)
	if err != nil {
		t.Fatalf("TransformMultiple: %v", err)
	}

	// incoming must land after both committed ops have been applied, i.e.
	// committed ops always win position ties over a catching-up client.
	doc := applyToString(t, applyToString(t, "", committed[0]), committed[1])
	final := applyToString(t, doc, got)
	if final != "12X" {
		t.Fatalf("TransformMultiple result = %q, want %q", final, "12X")
	}
}

func TestValidateRejectsNegativeCount(t *testing.T) {
	_, err := Compose(delta.Delta{}, delta.Delta{{Kind: delta.KindRetain, Count: -1}})
	if err == nil {
		t.Fatal("expected a ProtocolError for a negative retain count")
	}
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("error = %T, want *ProtocolError", err)
	}
}

func TestValidateRejectsEmptyInsert(t *testing.T) {
	_, err := Compose(delta.Delta{}, delta.Delta{{Kind: delta.KindInsert, Insert: ""}})
	if err == nil {
		t.Fatal("expected a ProtocolError for an empty string insert")
	}
}
