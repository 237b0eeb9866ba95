// Package store is the durable side of a document: GORM/MySQL models plus
// the version-gated transactions that make the optimistic-concurrency
// backstop described alongside the lock service actually hold. Generalized
// from gateway/backend/internal/store (Snapshot.go, mysql_gorm.go,
// user_store.go) in the teacher repo, which persisted snapshots and users
// but never gated a write on the revision it was based on.
package store

import (
	"time"

	"syncdoc/internal/ot/delta"
)

// Document is the latest materialized state of a document: its content
// expressed as a flat insert-only delta, and the version that content was
// produced at. Every successful Commit bumps Version by exactly one.
type Document struct {
	ID        string `gorm:"primaryKey;column:id"`
	Content   delta.Delta `gorm:"column:content;serializer:json"`
	Version   uint64      `gorm:"column:version;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Document) TableName() string { return "documents" }

// OperationLogEntry is one committed operation in a document's history.
// The unique (doc_id, version) index is the actual correctness mechanism:
// two concurrent commits racing for the same version can both attempt the
// insert, but only one will survive it.
type OperationLogEntry struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	DocID        string      `gorm:"column:doc_id;uniqueIndex:doc_version,priority:1"`
	Version      uint64      `gorm:"column:version;uniqueIndex:doc_version,priority:2"`
	AuthorID     string      `gorm:"column:author_id"`
	ClientID     string      `gorm:"column:client_id"`
	ClientSeq    uint64      `gorm:"column:client_seq"`
	Ops          delta.Delta `gorm:"column:ops;serializer:json"`
	AppliedAt    time.Time   `gorm:"column:applied_at"`
}

func (OperationLogEntry) TableName() string { return "operation_log_entries" }
