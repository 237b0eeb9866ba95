package delta

import "testing"

func TestOpLength(t *testing.T) {
	cases := []struct {
		op   Op
		want int
	}{
		{Retain(5, nil), 5},
		{Delete(3), 3},
		{Insert("hello", nil), 5},
		{Insert("héllo", nil), 5},
		{Insert(map[string]any{"image": "x"}, nil), 1},
	}
	for _, c := range cases {
		if got := c.op.Length(); got != c.want {
			t.Fatalf("Length(%+v) = %d, want %d", c.op, got, c.want)
		}
	}
}

func TestIsEmbed(t *testing.T) {
	if Insert("text", nil).IsEmbed() {
		t.Fatal("string insert reported as embed")
	}
	if !Insert(map[string]any{"image": "x"}, nil).IsEmbed() {
		t.Fatal("embed insert not reported as embed")
	}
	if Retain(1, nil).IsEmbed() {
		t.Fatal("retain reported as embed")
	}
}

func TestDeltaLength(t *testing.T) {
	d := Delta{Retain(3, nil), Insert("ab", nil), Delete(2)}
	if got := d.Length(); got != 5 {
		t.Fatalf("Length() = %d, want 5", got)
	}
}

func TestEqual(t *testing.T) {
	a := Delta{Retain(3, Attrs{"bold": true}), Insert("x", nil)}
	b := Delta{Retain(3, Attrs{"bold": true}), Insert("x", nil)}
	if !Equal(a, b) {
		t.Fatal("structurally identical deltas reported unequal")
	}
	c := Delta{Retain(3, nil), Insert("x", nil)}
	if Equal(a, c) {
		t.Fatal("deltas with different attrs reported equal")
	}
}

func TestClone(t *testing.T) {
	orig := Delta{Retain(2, Attrs{"bold": true})}
	clone := orig.Clone()
	clone[0].Attrs["bold"] = false
	if orig[0].Attrs["bold"] != true {
		t.Fatal("Clone shared the attrs map with the original")
	}
}
