package collab

import (
	"context"
	"errors"
	"testing"

	"syncdoc/internal/ot/delta"
	"syncdoc/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := store.NewFakeStore()
	svc := &Service{store: st, dispatcher: NewKafkaDispatcher(nil, "")}
	return svc, st
}

func TestSubmitAppliesFirstOp(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	st.Create(ctx, "doc1", delta.Delta{})

	applied, err := svc.Submit(ctx, SubmitRequest{
		DocID:       "doc1",
		AuthorID:    "u1",
		BaseVersion: 0,
		ClientID:    "c1",
		ClientSeq:   1,
		Ops:         delta.Delta{delta.Insert("hello", nil)},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if applied.Version != 1 {
		t.Fatalf("Version = %d, want 1", applied.Version)
	}

	doc, err := svc.Document(ctx, "doc1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if !delta.Equal(delta.Normalize(doc.Content), delta.Delta{delta.Insert("hello", nil)}) {
		t.Fatalf("content = %+v", doc.Content)
	}
}

func TestSubmitCatchesUpStaleBaseVersion(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	st.Create(ctx, "doc1", delta.Delta{})

	if _, err := svc.Submit(ctx, SubmitRequest{
		DocID: "doc1", AuthorID: "u1", BaseVersion: 0, ClientID: "c1", ClientSeq: 1,
		Ops: delta.Delta{delta.Insert("A", nil)},
	}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	// u2 submits based on version 0, even though u1 already landed at
	// version 1 — the service must transform u2's op against it.
	applied, err := svc.Submit(ctx, SubmitRequest{
		DocID: "doc1", AuthorID: "u2", BaseVersion: 0, ClientID: "c2", ClientSeq: 1,
		Ops: delta.Delta{delta.Insert("B", nil)},
	})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if applied.Version != 2 {
		t.Fatalf("Version = %d, want 2", applied.Version)
	}

	doc, err := svc.Document(ctx, "doc1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	got := delta.Normalize(doc.Content)
	want := delta.Delta{delta.Insert("AB", nil)}
	if !delta.Equal(got, want) {
		t.Fatalf("content = %+v, want %+v", got, want)
	}
}

// TestSubmitRejectsVersionAheadOfDocument matches spec §4.4/§7: a
// baseVersion past the document's actual current version is corrupt or
// replayed state, never legitimate lag, and must be rejected outright
// rather than composed onto the current content unchanged.
func TestSubmitRejectsVersionAheadOfDocument(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	st.Create(ctx, "doc1", delta.Delta{})

	_, err := svc.Submit(ctx, SubmitRequest{
		DocID: "doc1", AuthorID: "u1", BaseVersion: 5, ClientID: "c1", ClientSeq: 1,
		Ops: delta.Delta{delta.Insert("A", nil)},
	})
	if !errors.Is(err, ErrVersionAhead) {
		t.Fatalf("err = %v, want ErrVersionAhead", err)
	}

	doc, err := svc.Document(ctx, "doc1")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.Version != 0 || len(delta.Normalize(doc.Content)) != 0 {
		t.Fatalf("document was mutated by a rejected submit: version=%d content=%+v", doc.Version, doc.Content)
	}
}

func TestOpsSinceReturnsCatchupLog(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	st.Create(ctx, "doc1", delta.Delta{})
	svc.Submit(ctx, SubmitRequest{DocID: "doc1", AuthorID: "u1", ClientID: "c1", ClientSeq: 1, Ops: delta.Delta{delta.Insert("A", nil)}})
	svc.Submit(ctx, SubmitRequest{DocID: "doc1", AuthorID: "u1", BaseVersion: 1, ClientID: "c1", ClientSeq: 2, Ops: delta.Delta{delta.Retain(1, nil), delta.Insert("B", nil)}})

	entries, err := svc.OpsSince(ctx, "doc1", 0, 0)
	if err != nil {
		t.Fatalf("OpsSince: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}
