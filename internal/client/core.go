// Package client is the transport-free collaboration state machine: the
// three cells (knownVersion, inFlightOp, pendingOp) a document editor's
// event loop owns, and the six events that mutate them. Nothing here
// touches a socket; wsclient.go wires it to a real connection.
package client

import (
	"syncdoc/internal/ot"
	"syncdoc/internal/ot/delta"
)

// Outbound is what Core wants the transport to send next: a send-op frame
// if HasSendOp is true, or a join-doc resync if Resync is true.
type Outbound struct {
	SendOp       delta.Delta
	SendOpBase   uint64
	HasSendOp    bool
	Resync       bool
	ResyncFromV  uint64
}

// Core holds one document's local editing state. It is not safe for
// concurrent use; the owning event loop must serialize calls into it the
// same way a single readPump goroutine would.
type Core struct {
	View delta.Delta

	knownVersion uint64
	inFlightOp   delta.Delta // nil means none
	pendingOp    delta.Delta // nil means none
}

func New() *Core {
	return &Core{View: delta.Delta{}}
}

func (c *Core) KnownVersion() uint64 { return c.knownVersion }
func (c *Core) HasInFlight() bool    { return c.inFlightOp != nil }
func (c *Core) HasPending() bool     { return c.pendingOp != nil }

// LocalEdit handles a user-originated delta. The view is updated
// optimistically right away regardless of network state, since the user
// needs to see their own keystrokes immediately. If nothing is in flight
// the op is sent now; otherwise it's folded into pendingOp, since an edit
// must never be sent while an op is outstanding.
func (c *Core) LocalEdit(d delta.Delta) (Outbound, error) {
	view, err := ot.Compose(c.View, d)
	if err != nil {
		return Outbound{}, err
	}
	c.View = view

	if c.inFlightOp == nil {
		c.inFlightOp = d
		return Outbound{HasSendOp: true, SendOp: d, SendOpBase: c.knownVersion}, nil
	}
	if c.pendingOp == nil {
		c.pendingOp = d
	} else {
		composed, err := ot.Compose(c.pendingOp, d)
		if err != nil {
			return Outbound{}, err
		}
		c.pendingOp = composed
	}
	return Outbound{}, nil
}

// OpAck handles the server's acknowledgement of the op this client sent.
// If a pendingOp accumulated while it was outstanding, it becomes the next
// inFlightOp and is sent immediately.
func (c *Core) OpAck(version uint64) Outbound {
	c.knownVersion = version
	c.inFlightOp = nil
	if c.pendingOp == nil {
		return Outbound{}
	}
	next := c.pendingOp
	c.pendingOp = nil
	c.inFlightOp = next
	return Outbound{HasSendOp: true, SendOp: next, SendOpBase: c.knownVersion}
}

// ReceiveOp handles a committed op broadcast from the room. With nothing
// outstanding it's a direct apply. With local state in flight, the remote
// op is transformed against it with the local state keeping position ties
// (its inserts already sit in the view ahead of the remote ones), while the
// optimistic local state is transformed to still make sense against the
// new view.
func (c *Core) ReceiveOp(d delta.Delta, version uint64) error {
	if err := c.applyRemote(d); err != nil {
		return err
	}
	c.knownVersion = version
	return nil
}

// applyRemote folds a single committed delta into the view and the
// outstanding optimistic state, without touching knownVersion — shared by
// ReceiveOp (which bumps knownVersion to the op's own version) and Catchup
// (which only bumps knownVersion once, to currentVersion, after every
// replayed op has been applied).
func (c *Core) applyRemote(d delta.Delta) error {
	if c.inFlightOp == nil && c.pendingOp == nil {
		view, err := ot.Compose(c.View, d)
		if err != nil {
			return err
		}
		c.View = view
		return nil
	}

	localAhead := c.inFlightOp
	if c.pendingOp != nil {
		composed, err := ot.Compose(localAhead, c.pendingOp)
		if err != nil {
			return err
		}
		localAhead = composed
	}

	remotePrime, err := ot.Transform(localAhead, d, true)
	if err != nil {
		return err
	}

	if c.inFlightOp != nil {
		c.inFlightOp, err = ot.Transform(d, c.inFlightOp, false)
		if err != nil {
			return err
		}
	}
	if c.pendingOp != nil {
		c.pendingOp, err = ot.Transform(d, c.pendingOp, false)
		if err != nil {
			return err
		}
	}

	view, err := ot.Compose(c.View, remotePrime)
	if err != nil {
		return err
	}
	c.View = view
	return nil
}

// Catchup replays a rejoining client's missed log entries in ascending
// version order, treating each one as a remote op against any outstanding
// optimistic state, then sets knownVersion to currentVersion directly —
// never inferred from the last entry, so an empty list still moves
// knownVersion to currentVersion.
func (c *Core) Catchup(ops []delta.Delta, currentVersion uint64) error {
	for _, d := range ops {
		if err := c.applyRemote(d); err != nil {
			return err
		}
	}
	c.knownVersion = currentVersion
	return nil
}

// DocSnapshot replaces the local view wholesale, the response to a fresh
// join-doc when catch-up replay wasn't available.
func (c *Core) DocSnapshot(content delta.Delta, version uint64) {
	c.View = content
	c.knownVersion = version
	c.inFlightOp = nil
	c.pendingOp = nil
}

// OpError clears all local optimistic state and asks the transport to
// resend join-doc so the server can resynchronize it.
func (c *Core) OpError() Outbound {
	c.inFlightOp = nil
	c.pendingOp = nil
	return Outbound{Resync: true, ResyncFromV: c.knownVersion}
}
