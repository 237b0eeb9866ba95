package delta

import "testing"

func TestIteratorSplitsInsert(t *testing.T) {
	it := NewIterator(Delta{Insert("hello", nil)})
	first := it.Next(2)
	if first.Insert != "he" {
		t.Fatalf("first = %+v, want insert %q", first, "he")
	}
	rest := it.Rest()
	want := Delta{Insert("llo", nil)}
	if !Equal(rest, want) {
		t.Fatalf("Rest() = %+v, want %+v", rest, want)
	}
}

func TestIteratorSplitsRetain(t *testing.T) {
	it := NewIterator(Delta{Retain(10, Attrs{"bold": true})})
	first := it.Next(4)
	if first.Count != 4 {
		t.Fatalf("first.Count = %d, want 4", first.Count)
	}
	if it.PeekLength() != 6 {
		t.Fatalf("PeekLength() = %d, want 6", it.PeekLength())
	}
}

func TestIteratorDoneAtEnd(t *testing.T) {
	it := NewIterator(Delta{Retain(3, nil)})
	it.Next(3)
	if !it.Done() {
		t.Fatal("iterator not done after consuming its only op")
	}
	if it.PeekLength() != MaxLen {
		t.Fatalf("PeekLength() at end = %d, want MaxLen", it.PeekLength())
	}
}

func TestIteratorEmbedNotSplit(t *testing.T) {
	embed := map[string]any{"image": "x"}
	it := NewIterator(Delta{Insert(embed, nil)})
	op := it.Next(100)
	if op.Insert.(map[string]any)["image"] != "x" {
		t.Fatalf("embed op = %+v", op)
	}
	if !it.Done() {
		t.Fatal("embed insert should be consumed whole")
	}
}
