package store

import (
	"context"
	"errors"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"syncdoc/internal/ot/delta"
)

var (
	// ErrNotFound is returned when a document has never been created.
	ErrNotFound = errors.New("store: document not found")
	// ErrVersionConflict is the version gate tripping: someone else
	// committed in between the caller's load and this commit attempt.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicateOperation means the log already holds an entry at the
	// (docID, version) pair a commit was about to write, even though the
	// document's version gate passed; nothing is written in that case.
	ErrDuplicateOperation = errors.New("store: duplicate operation")
)

// Store is what the document service needs from persistence: load the
// current materialized content, fetch the log for catch-up, and commit a
// new version only if the caller's expected version still matches.
type Store interface {
	Load(ctx context.Context, docID string) (Document, error)
	OpsSince(ctx context.Context, docID string, fromVersion uint64, limit int) ([]OperationLogEntry, error)
	Commit(ctx context.Context, docID string, expectedVersion uint64, newContent delta.Delta, entry OperationLogEntry) (Document, error)
	Create(ctx context.Context, docID string, initial delta.Delta) (Document, error)
}

// GormStore is the MySQL-backed Store. Commit runs inside a transaction so
// the conditional UPDATE and the log insert either both land or neither
// does — generalizing the teacher's bare SnapshotStore insert (which had no
// gate at all) into the version-checked write path spec.md's Document
// Store requires.
type GormStore struct {
	db *gorm.DB
	sf singleflight.Group
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, docID string, initial delta.Delta) (Document, error) {
	doc := Document{ID: docID, Content: initial, Version: 0}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		if isDuplicateKey(err) {
			return s.Load(ctx, docID)
		}
		return Document{}, err
	}
	return doc, nil
}

// Load fetches the current materialized document. Concurrent loads for the
// same docID are collapsed into a single query via singleflight, the same
// de-duplication shape used in the pack's redisInteraction cache for
// GetLike/GetQuestionMark/GetShare.
func (s *GormStore) Load(ctx context.Context, docID string) (Document, error) {
	v, err, _ := s.sf.Do("load:"+docID, func() (any, error) {
		var doc Document
		err := s.db.WithContext(ctx).First(&doc, "id = ?", docID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return doc, err
	})
	if err != nil {
		return Document{}, err
	}
	return v.(Document), nil
}

func (s *GormStore) OpsSince(ctx context.Context, docID string, fromVersion uint64, limit int) ([]OperationLogEntry, error) {
	q := s.db.WithContext(ctx).
		Where("doc_id = ? AND version > ?", docID, fromVersion).
		Order("version asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []OperationLogEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Commit is the version gate: it only advances the document if its current
// version still equals expectedVersion, and only logs the operation if
// that update actually landed. Both checks run in the same transaction so
// a crash between them can never leave the log and the materialized
// content disagreeing about the current version.
func (s *GormStore) Commit(ctx context.Context, docID string, expectedVersion uint64, newContent delta.Delta, entry OperationLogEntry) (Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Document{}).
			Where("id = ? AND version = ?", docID, expectedVersion).
			Updates(map[string]any{
				"content": newContent,
				"version": expectedVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		entry.DocID = docID
		entry.Version = expectedVersion + 1
		if entry.AppliedAt.IsZero() {
			entry.AppliedAt = time.Now()
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateOperation
			}
			return err
		}

		return tx.First(&doc, "id = ?", docID).Error
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
