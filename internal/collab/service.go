// Package collab is the document service: the load -> transform -> compose
// -> commit -> retry pipeline that turns a client's submitted op, based on
// whatever version it last knew about, into a durable commit at the
// document's true current version. Generalized from the teacher's
// gateway/backend/internal/collab/service.go (InMemoryService.Submit),
// which only checked baseRevision against the in-memory revision and
// rejected on any mismatch instead of transforming and retrying.
package collab

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"syncdoc/internal/lock"
	"syncdoc/internal/ot"
	"syncdoc/internal/ot/delta"
	"syncdoc/internal/store"
)

// ErrTooManyRetries means the document stayed contested across every
// retry attempt; the connection reports it to the client as op-error.
var ErrTooManyRetries = errors.New("collab: exceeded retry budget")

// ErrVersionAhead means the client submitted an op based on a version
// newer than the document's actual current version — corrupt state or a
// replayed request, never a legitimate lag. It is not retriable: the
// caller must resync via join-doc rather than resubmit.
var ErrVersionAhead = errors.New("collab: base version ahead of document")

const (
	maxRetries   = 5
	lockTTL      = 2 * time.Second
	lockWait     = 200 * time.Millisecond
	lockAttempts = 5
)

// AppliedOp is the durable record of one operation landing on a document,
// returned to the caller and broadcast to the rest of the room.
type AppliedOp struct {
	DocID     string
	Version   uint64
	AuthorID  string
	ClientID  string
	ClientSeq uint64
	Ops       delta.Delta
	AppliedAt time.Time
}

// SubmitRequest is a client's op, tagged with the version it was composed
// against so the service can tell how far behind it is.
type SubmitRequest struct {
	DocID       string
	AuthorID    string
	BaseVersion uint64
	ClientID    string
	ClientSeq   uint64
	Ops         delta.Delta
}

// Service is the document service: Submit runs the full
// load/transform/compose/commit pipeline; Document and OpsSince are read
// paths used by the join-doc handshake, and CreateDocument creates an
// empty document at version 0.
type Service struct {
	store  store.Store
	lock   *lock.Service
	dispatcher *KafkaDispatcher
}

func NewService(st store.Store, lk *lock.Service, kafka sarama.SyncProducer, topic string) *Service {
	return &Service{
		store:      st,
		lock:       lk,
		dispatcher: NewKafkaDispatcher(kafka, topic),
	}
}

// Document returns the current materialized content and version, for the
// doc-snapshot message sent when a client joins.
func (s *Service) Document(ctx context.Context, docID string) (store.Document, error) {
	return s.store.Load(ctx, docID)
}

// OpsSince returns the committed log entries after fromVersion, for the
// catchup-ops message sent when a rejoining client already has some
// content.
func (s *Service) OpsSince(ctx context.Context, docID string, fromVersion uint64, limit int) ([]store.OperationLogEntry, error) {
	return s.store.OpsSince(ctx, docID, fromVersion, limit)
}

func (s *Service) CreateDocument(ctx context.Context, docID string) (store.Document, error) {
	return s.store.Create(ctx, docID, delta.Delta{})
}

// Submit runs req through the pipeline described above. The lock is taken
// as a serialization optimization only: if it can't be acquired within
// lockAttempts tries, Submit still proceeds and lets the store's version
// gate on Commit be the actual arbiter.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (AppliedOp, error) {
	token, haveLock := s.acquireLock(ctx, req.DocID)
	if haveLock {
		defer s.lock.Release(ctx, req.DocID, token)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		doc, err := s.store.Load(ctx, req.DocID)
		if err != nil {
			return AppliedOp{}, err
		}
		if req.BaseVersion > doc.Version {
			return AppliedOp{}, ErrVersionAhead
		}

		transformed, err := s.catchUp(ctx, req, doc.Version)
		if err != nil {
			return AppliedOp{}, err
		}

		newContent, err := ot.Compose(doc.Content, transformed)
		if err != nil {
			return AppliedOp{}, err
		}

		entry := store.OperationLogEntry{
			AuthorID:  req.AuthorID,
			ClientID:  req.ClientID,
			ClientSeq: req.ClientSeq,
			Ops:       transformed,
			AppliedAt: time.Now(),
		}
		committed, err := s.store.Commit(ctx, req.DocID, doc.Version, newContent, entry)
		switch {
		case err == nil:
			applied := AppliedOp{
				DocID:     req.DocID,
				Version:   committed.Version,
				AuthorID:  req.AuthorID,
				ClientID:  req.ClientID,
				ClientSeq: req.ClientSeq,
				Ops:       transformed,
				AppliedAt: entry.AppliedAt,
			}
			s.dispatcher.Publish(applied)
			return applied, nil
		case errors.Is(err, store.ErrVersionConflict):
			continue // someone else committed between Load and Commit; retry
		case errors.Is(err, store.ErrDuplicateOperation):
			return AppliedOp{}, err
		default:
			return AppliedOp{}, err
		}
	}
	return AppliedOp{}, ErrTooManyRetries
}

// catchUp transforms req.Ops against every op committed since the version
// req was based on, so it's safe to compose onto the document's current
// content no matter how far behind the client was. Submit has already
// rejected req.BaseVersion > currentVersion with ErrVersionAhead, so the
// only no-op case left here is an exact match.
func (s *Service) catchUp(ctx context.Context, req SubmitRequest, currentVersion uint64) (delta.Delta, error) {
	if req.BaseVersion == currentVersion {
		return req.Ops, nil
	}
	entries, err := s.store.OpsSince(ctx, req.DocID, req.BaseVersion, 0)
	if err != nil {
		return nil, err
	}
	committed := make([]delta.Delta, len(entries))
	for i, e := range entries {
		committed[i] = e.Ops
	}
	return ot.TransformMultiple(req.Ops, committed)
}

func (s *Service) acquireLock(ctx context.Context, docID string) (string, bool) {
	if s.lock == nil {
		return "", false
	}
	for i := 0; i < lockAttempts; i++ {
		token, err := s.lock.TryAcquire(ctx, docID, lockTTL)
		if err == nil {
			return token, true
		}
		select {
		case <-time.After(lockWait):
		case <-ctx.Done():
			return "", false
		}
	}
	return "", false
}
