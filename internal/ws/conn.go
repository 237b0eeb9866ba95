package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"syncdoc/internal/collab"
	"syncdoc/internal/room"
	"syncdoc/internal/store"
)

const (
	sendBufferSize = 256
	sendTimeout    = 200 * time.Millisecond
	cursorTTL      = 10 * time.Minute
	maxInFlightOps = 8
)

// OutboundMessage is anything this connection can write back to the
// client as a JSON frame. Every server -> client message type in
// message.go implements it, the same tagging pattern as the teacher's
// OutboundMessage in collab-service/backend/internal/ws/conn.go.
type OutboundMessage interface {
	MessageType() string
}

// Conn is one client's WebSocket session: a readLoop goroutine driving the
// collab.Service pipeline and a writeLoop goroutine draining outbound
// frames, connected by a single buffered channel — the same split the
// teacher used in collab-service/backend/internal/ws/conn.go, generalized
// from a single fixed docID per connection to join-doc/leave-doc switching
// and from revision numbers to spec.md's version vocabulary.
type Conn struct {
	ws       *websocket.Conn
	router   *room.Router
	presence room.PresenceCache
	svc      *collab.Service
	sem      *collab.Semaphore

	clientID string
	userID   string
	docID    string

	send   chan OutboundMessage
	closed chan struct{}
}

func NewConn(ws *websocket.Conn, router *room.Router, presence room.PresenceCache, svc *collab.Service, clientID, userID string) *Conn {
	return &Conn{
		ws:       ws,
		router:   router,
		presence: presence,
		svc:      svc,
		sem:      collab.NewSemaphore(maxInFlightOps),
		clientID: clientID,
		userID:   userID,
		send:     make(chan OutboundMessage, sendBufferSize),
		closed:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.clientID }

// Enqueue satisfies room.Subscriber: it gives a slow peer a bounded window
// to drain before treating it as dead, rather than silently dropping an
// op-ack, op-error, or receive-op the way the teacher's non-blocking
// SendMessage_Enqueue did for every message type.
func (c *Conn) Enqueue(msg any) bool {
	om, ok := msg.(OutboundMessage)
	if !ok {
		return false
	}
	select {
	case c.send <- om:
		return true
	case <-time.After(sendTimeout):
		c.Close()
		return false
	case <-c.closed:
		return false
	}
}

// enqueueBestEffort is for this connection's own join-doc replies
// (doc-snapshot, catchup-ops) and error frames: it never blocks or kills
// the connection, and drops the frame if the send buffer is full. Room
// fan-out (receive-op, remote-cursor, user-left) goes through Enqueue.
func (c *Conn) enqueueBestEffort(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Conn) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		c.ws.Close()
	}
}

func (c *Conn) Run(ctx context.Context) {
	go c.writeLoop()
	c.readLoop(ctx)
}

func (c *Conn) writeLoop() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer c.teardown(ctx)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.enqueueBestEffort(ErrorMessage{Type: TypeError, Reason: "malformed frame"})
			continue
		}
		switch env.Type {
		case TypeJoinDoc:
			var m JoinDocMessage
			if err := json.Unmarshal(raw, &m); err == nil {
				c.handleJoinDoc(ctx, m)
			}
		case TypeSendOp:
			var m SendOpMessage
			if err := json.Unmarshal(raw, &m); err == nil {
				c.handleSendOp(ctx, m)
			}
		case TypeCursorUpdate:
			var m CursorUpdateMessage
			if err := json.Unmarshal(raw, &m); err == nil {
				c.handleCursorUpdate(ctx, m)
			}
		case TypeLeaveDoc:
			var m LeaveDocMessage
			if err := json.Unmarshal(raw, &m); err == nil {
				c.handleLeaveDoc(ctx, m)
			}
		default:
			c.enqueueBestEffort(ErrorMessage{Type: TypeError, Reason: "unknown message type " + env.Type})
		}
	}
}

func (c *Conn) handleJoinDoc(ctx context.Context, m JoinDocMessage) {
	if c.docID != "" && c.docID != m.DocID {
		c.handleLeaveDoc(ctx, LeaveDocMessage{DocID: c.docID})
	}
	c.docID = m.DocID

	doc, err := c.svc.Document(ctx, m.DocID)
	if errors.Is(err, store.ErrNotFound) {
		c.enqueueBestEffort(ErrorMessage{Type: TypeError, Reason: "document not found"})
		return
	}
	if err != nil {
		c.enqueueBestEffort(ErrorMessage{Type: TypeError, Reason: "join-doc failed: " + err.Error()})
		return
	}

	c.router.Subscribe(m.DocID, c)
	if c.presence != nil {
		if err := c.presence.AddMember(ctx, m.DocID, c.clientID, c.userID, cursorTTL); err != nil {
			log.Printf("ws: add presence member: %v", err)
		}
	}

	if m.KnownVersion > 0 && m.KnownVersion < doc.Version {
		entries, err := c.svc.OpsSince(ctx, m.DocID, m.KnownVersion, 0)
		if err == nil {
			out := make([]CatchupEntry, len(entries))
			for i, e := range entries {
				out[i] = CatchupEntry{Version: e.Version, Ops: e.Ops}
			}
			c.enqueueBestEffort(CatchupOpsMessage{Type: TypeCatchupOps, DocID: m.DocID, Ops: out, CurrentVersion: doc.Version})
			return
		}
	}
	c.enqueueBestEffort(DocSnapshotMessage{Type: TypeDocSnapshot, DocID: m.DocID, Version: doc.Version, Content: doc.Content})
}

func (c *Conn) handleSendOp(ctx context.Context, m SendOpMessage) {
	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.sem.Acquire(opCtx); err != nil {
		c.Enqueue(OpErrorMessage{Type: TypeOpError, DocID: m.DocID, ClientID: m.ClientID, ClientSeq: m.ClientSeq, Reason: err.Error()})
		return
	}
	defer c.sem.Release()

	applied, err := c.svc.Submit(opCtx, collab.SubmitRequest{
		DocID:       m.DocID,
		AuthorID:    c.userID,
		BaseVersion: m.BaseVersion,
		ClientID:    m.ClientID,
		ClientSeq:   m.ClientSeq,
		Ops:         m.Ops,
	})
	if err != nil {
		c.Enqueue(OpErrorMessage{Type: TypeOpError, DocID: m.DocID, ClientID: m.ClientID, ClientSeq: m.ClientSeq, Reason: err.Error()})
		return
	}

	c.Enqueue(OpAckMessage{Type: TypeOpAck, DocID: m.DocID, ClientID: m.ClientID, ClientSeq: m.ClientSeq, Version: applied.Version})
	c.router.Broadcast(m.DocID, c, ReceiveOpMessage{
		Type:      TypeReceiveOp,
		DocID:     m.DocID,
		Version:   applied.Version,
		AuthorID:  applied.AuthorID,
		Ops:       applied.Ops,
		AppliedAt: applied.AppliedAt,
	})
}

func (c *Conn) handleCursorUpdate(ctx context.Context, m CursorUpdateMessage) {
	if c.presence != nil {
		if body, err := json.Marshal(m.Cursor); err == nil {
			c.presence.SetCursor(ctx, m.DocID, c.clientID, body, cursorTTL)
		}
	}
	c.router.Broadcast(m.DocID, c, RemoteCursorMessage{
		Type:   TypeRemoteCursor,
		DocID:  m.DocID,
		UserID: c.userID,
		Cursor: m.Cursor,
	})
}

func (c *Conn) handleLeaveDoc(ctx context.Context, m LeaveDocMessage) {
	c.router.Unsubscribe(m.DocID, c)
	if c.presence != nil {
		c.presence.RemoveMember(ctx, m.DocID, c.clientID)
	}
	c.router.Broadcast(m.DocID, c, UserLeftMessage{Type: TypeUserLeft, DocID: m.DocID, UserID: c.userID})
	if c.docID == m.DocID {
		c.docID = ""
	}
}

func (c *Conn) teardown(ctx context.Context) {
	if c.docID != "" {
		c.handleLeaveDoc(ctx, LeaveDocMessage{DocID: c.docID})
	}
	c.Close()
}
