package store

import (
	"context"
	"testing"

	"syncdoc/internal/ot/delta"
)

func TestFakeStoreCommitAdvancesVersion(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()
	if _, err := s.Create(ctx, "doc1", delta.Delta{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	content := delta.Delta{delta.Insert("hello", nil)}
	doc, err := s.Commit(ctx, "doc1", 0, content, OperationLogEntry{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if doc.Version != 1 {
		t.Fatalf("Version = %d, want 1", doc.Version)
	}
}

func TestFakeStoreCommitRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()
	s.Create(ctx, "doc1", delta.Delta{})
	s.Commit(ctx, "doc1", 0, delta.Delta{delta.Insert("a", nil)}, OperationLogEntry{})

	_, err := s.Commit(ctx, "doc1", 0, delta.Delta{delta.Insert("b", nil)}, OperationLogEntry{})
	if err != ErrVersionConflict {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestFakeStoreOpsSinceFiltersByVersion(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStore()
	s.Create(ctx, "doc1", delta.Delta{})
	s.Commit(ctx, "doc1", 0, delta.Delta{delta.Insert("a", nil)}, OperationLogEntry{ClientID: "c1"})
	s.Commit(ctx, "doc1", 1, delta.Delta{delta.Insert("ab", nil)}, OperationLogEntry{ClientID: "c2"})

	entries, err := s.OpsSince(ctx, "doc1", 1, 0)
	if err != nil {
		t.Fatalf("OpsSince: %v", err)
	}
	if len(entries) != 1 || entries[0].ClientID != "c2" {
		t.Fatalf("entries = %+v, want one entry from c2", entries)
	}
}

func TestFakeStoreLoadMissingDocument(t *testing.T) {
	s := NewFakeStore()
	_, err := s.Load(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
