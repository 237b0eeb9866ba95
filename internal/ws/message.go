// Package ws is the WebSocket transport: the wire message shapes and the
// per-connection read/write loops that turn them into collab.Service
// calls. Generalized from the teacher's gateway/backend/internal/ws and
// collab-service/backend/internal/ws packages (message.go, hub.go,
// conn.go), whose ClientMessage/ServerMessage pair mixed several concerns
// (heartbeat, document titles, presence) into one struct each; this
// package gives each client and server message its own named type per
// spec.md §5's message set.
package ws

import (
	"time"

	"syncdoc/internal/ot/delta"
)

// Client -> server message types.
const (
	TypeJoinDoc      = "join-doc"
	TypeSendOp       = "send-op"
	TypeCursorUpdate = "cursor-update"
	TypeLeaveDoc     = "leave-doc"
)

// Server -> client message types.
const (
	TypeDocSnapshot = "doc-snapshot"
	TypeCatchupOps  = "catchup-ops"
	TypeReceiveOp   = "receive-op"
	TypeOpAck       = "op-ack"
	TypeOpError     = "op-error"
	TypeRemoteCursor = "remote-cursor"
	TypeUserLeft    = "user-left"
	TypeError       = "error"
)

// Envelope is the outer shape every inbound frame is first parsed into so
// the handler can dispatch on Type before unmarshaling the rest.
type Envelope struct {
	Type string `json:"type"`
}

type JoinDocMessage struct {
	Type        string `json:"type"`
	DocID       string `json:"docId"`
	KnownVersion uint64 `json:"knownVersion"`
}

type SendOpMessage struct {
	Type        string      `json:"type"`
	DocID       string      `json:"docId"`
	BaseVersion uint64      `json:"baseVersion"`
	ClientID    string      `json:"clientId"`
	ClientSeq   uint64      `json:"clientSeq"`
	Ops         delta.Delta `json:"ops"`
}

type CursorUpdateMessage struct {
	Type   string `json:"type"`
	DocID  string `json:"docId"`
	Cursor any    `json:"cursor"`
}

type LeaveDocMessage struct {
	Type  string `json:"type"`
	DocID string `json:"docId"`
}

// DocSnapshotMessage is sent right after join-doc: the document's full
// current content and the version it was fetched at.
type DocSnapshotMessage struct {
	Type    string      `json:"type"`
	DocID   string      `json:"docId"`
	Version uint64      `json:"version"`
	Content delta.Delta `json:"content"`
}

func (m DocSnapshotMessage) MessageType() string { return m.Type }

// CatchupOpsMessage lists every committed op after the version a
// rejoining client already has, used instead of a fresh snapshot whenever
// that known version is non-zero and behind the document's current one.
type CatchupOpsMessage struct {
	Type           string         `json:"type"`
	DocID          string         `json:"docId"`
	Ops            []CatchupEntry `json:"ops"`
	CurrentVersion uint64         `json:"currentVersion"`
}

func (m CatchupOpsMessage) MessageType() string { return m.Type }

type CatchupEntry struct {
	Version uint64      `json:"version"`
	Ops     delta.Delta `json:"ops"`
}

// ReceiveOpMessage is a committed op broadcast to every other subscriber
// of the document room.
type ReceiveOpMessage struct {
	Type      string      `json:"type"`
	DocID     string      `json:"docId"`
	Version   uint64      `json:"version"`
	AuthorID  string      `json:"authorId"`
	Ops       delta.Delta `json:"ops"`
	AppliedAt time.Time   `json:"appliedAt"`
}

func (m ReceiveOpMessage) MessageType() string { return m.Type }

// OpAckMessage acknowledges the sender's own op, telling it the version
// the op actually landed at (which may differ from BaseVersion+1 if the
// service had to transform it against concurrent commits).
type OpAckMessage struct {
	Type        string `json:"type"`
	DocID       string `json:"docId"`
	ClientID    string `json:"clientId"`
	ClientSeq   uint64 `json:"clientSeq"`
	Version     uint64 `json:"version"`
}

func (m OpAckMessage) MessageType() string { return m.Type }

type OpErrorMessage struct {
	Type      string `json:"type"`
	DocID     string `json:"docId"`
	ClientID  string `json:"clientId"`
	ClientSeq uint64 `json:"clientSeq"`
	Reason    string `json:"reason"`
}

func (m OpErrorMessage) MessageType() string { return m.Type }

type RemoteCursorMessage struct {
	Type   string `json:"type"`
	DocID  string `json:"docId"`
	UserID string `json:"userId"`
	Cursor any    `json:"cursor"`
}

func (m RemoteCursorMessage) MessageType() string { return m.Type }

type UserLeftMessage struct {
	Type   string `json:"type"`
	DocID  string `json:"docId"`
	UserID string `json:"userId"`
}

func (m UserLeftMessage) MessageType() string { return m.Type }

type ErrorMessage struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
}

func (m ErrorMessage) MessageType() string { return m.Type }
