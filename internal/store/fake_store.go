package store

import (
	"context"
	"sync"

	"syncdoc/internal/ot/delta"
)

// FakeStore is an in-memory Store for tests, generalizing the teacher's
// InMemoryService doc-map-under-a-mutex shape (gateway/backend/internal/
// collab/service.go) from "the only implementation" into a test double
// that enforces the exact same version gate GormStore does.
type FakeStore struct {
	mu   sync.Mutex
	docs map[string]*Document
	log  map[string][]OperationLogEntry
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		docs: make(map[string]*Document),
		log:  make(map[string][]OperationLogEntry),
	}
}

func (s *FakeStore) Create(ctx context.Context, docID string, initial delta.Delta) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.docs[docID]; ok {
		return *existing, nil
	}
	doc := &Document{ID: docID, Content: initial, Version: 0}
	s.docs[docID] = doc
	return *doc, nil
}

func (s *FakeStore) Load(ctx context.Context, docID string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[docID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return *doc, nil
}

func (s *FakeStore) OpsSince(ctx context.Context, docID string, fromVersion uint64, limit int) ([]OperationLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OperationLogEntry
	for _, e := range s.log[docID] {
		if e.Version > fromVersion {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *FakeStore) Commit(ctx context.Context, docID string, expectedVersion uint64, newContent delta.Delta, entry OperationLogEntry) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return Document{}, ErrNotFound
	}
	if doc.Version != expectedVersion {
		return Document{}, ErrVersionConflict
	}
	for _, e := range s.log[docID] {
		if e.Version == expectedVersion+1 {
			return Document{}, ErrDuplicateOperation
		}
	}

	doc.Content = newContent
	doc.Version = expectedVersion + 1
	entry.DocID = docID
	entry.Version = doc.Version
	s.log[docID] = append(s.log[docID], entry)
	return *doc, nil
}
