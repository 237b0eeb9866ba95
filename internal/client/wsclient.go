package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"syncdoc/internal/ot/delta"
	"syncdoc/internal/ws"
)

// WSClient drives a Core over a real WebSocket connection: a dial, a
// readPump that feeds inbound frames into Core's event methods, and a
// writePump draining an outbound channel, the same split as
// sumanthd032-CollabText/agent/main.go's Client (readPump/writePump over a
// send chan), generalized from raw index/char ops to the wire messages
// internal/ws defines.
type WSClient struct {
	conn     *websocket.Conn
	core     *Core
	docID    string
	clientID string

	mu   sync.Mutex
	send chan any

	// RemoteOp is called whenever a receive-op, doc-snapshot or
	// catchup-ops frame changes the local view, letting a UI layer redraw;
	// nil is fine for headless use.
	RemoteOp func(view delta.Delta)
}

// Dial connects to a collabd WebSocket endpoint and authenticates with
// token, the same Bearer-or-query-param shape authclient.ExtractToken
// reads server-side.
func Dial(ctx context.Context, url, token string) (*WSClient, error) {
	header := map[string][]string{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	return &WSClient{
		conn:     conn,
		core:     New(),
		clientID: uuid.NewString(),
		send:     make(chan any, 64),
	}, nil
}

// Run starts the read/write pumps and blocks until the connection closes.
func (w *WSClient) Run(ctx context.Context) {
	go w.writePump()
	w.readPump(ctx)
}

func (w *WSClient) Close() {
	w.conn.Close()
}

// JoinDoc sends a join-doc frame for docID, resuming from whatever version
// the caller last knew about (0 for a fresh join).
func (w *WSClient) JoinDoc(docID string, knownVersion uint64) {
	w.docID = docID
	w.enqueue(ws.JoinDocMessage{Type: ws.TypeJoinDoc, DocID: docID, KnownVersion: knownVersion})
}

// Edit applies a local user edit: it updates Core and, if Core decides to
// send it now rather than buffer it, writes a send-op frame.
func (w *WSClient) Edit(d delta.Delta) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	out, err := w.core.LocalEdit(d)
	if err != nil {
		return err
	}
	if out.HasSendOp {
		w.sendOp(out.SendOp, out.SendOpBase)
	}
	return nil
}

func (w *WSClient) sendOp(d delta.Delta, base uint64) {
	w.enqueue(ws.SendOpMessage{
		Type:        ws.TypeSendOp,
		DocID:       w.docID,
		BaseVersion: base,
		ClientID:    w.clientID,
		ClientSeq:   0,
		Ops:         d,
	})
}

func (w *WSClient) enqueue(msg any) {
	select {
	case w.send <- msg:
	default:
	}
}

func (w *WSClient) writePump() {
	for msg := range w.send {
		if err := w.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (w *WSClient) readPump(ctx context.Context) {
	defer w.conn.Close()
	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		var env ws.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		w.dispatch(env.Type, raw)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (w *WSClient) dispatch(msgType string, raw []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch msgType {
	case ws.TypeDocSnapshot:
		var m ws.DocSnapshotMessage
		if json.Unmarshal(raw, &m) == nil {
			w.core.DocSnapshot(m.Content, m.Version)
			w.notify()
		}
	case ws.TypeCatchupOps:
		var m ws.CatchupOpsMessage
		if json.Unmarshal(raw, &m) == nil {
			ops := make([]delta.Delta, len(m.Ops))
			for i, e := range m.Ops {
				ops[i] = e.Ops
			}
			if err := w.core.Catchup(ops, m.CurrentVersion); err == nil {
				w.notify()
			}
		}
	case ws.TypeOpAck:
		var m ws.OpAckMessage
		if json.Unmarshal(raw, &m) == nil {
			out := w.core.OpAck(m.Version)
			if out.HasSendOp {
				w.sendOp(out.SendOp, out.SendOpBase)
			}
		}
	case ws.TypeReceiveOp:
		var m ws.ReceiveOpMessage
		if json.Unmarshal(raw, &m) == nil {
			if err := w.core.ReceiveOp(m.Ops, m.Version); err == nil {
				w.notify()
			}
		}
	case ws.TypeOpError:
		var m ws.OpErrorMessage
		if json.Unmarshal(raw, &m) == nil {
			out := w.core.OpError()
			if out.Resync {
				w.enqueue(ws.JoinDocMessage{Type: ws.TypeJoinDoc, DocID: w.docID, KnownVersion: out.ResyncFromV})
			}
		}
	}
}

func (w *WSClient) notify() {
	if w.RemoteOp != nil {
		w.RemoteOp(w.core.View)
	}
}
