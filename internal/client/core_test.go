package client

import (
	"testing"

	"syncdoc/internal/ot/delta"
)

func applyToString(s string, d delta.Delta) string {
	runes := []rune(s)
	var out []rune
	i := 0
	for _, op := range d {
		switch op.Kind {
		case delta.KindInsert:
			if str, ok := op.Insert.(string); ok {
				out = append(out, []rune(str)...)
			}
		case delta.KindRetain:
			n := op.Count
			if i+n > len(runes) {
				n = len(runes) - i
			}
			out = append(out, runes[i:i+n]...)
			i += n
		case delta.KindDelete:
			i += op.Count
		}
	}
	out = append(out, runes[i:]...)
	return string(out)
}

func TestLocalEditSendsImmediatelyWhenIdle(t *testing.T) {
	c := New()
	out, err := c.LocalEdit(delta.Delta{delta.Insert("d1", nil)})
	if err != nil {
		t.Fatalf("LocalEdit: %v", err)
	}
	if !out.HasSendOp {
		t.Fatal("expected immediate send when nothing is in flight")
	}
	if !c.HasInFlight() || c.HasPending() {
		t.Fatalf("inFlight=%v pending=%v, want true/false", c.HasInFlight(), c.HasPending())
	}
}

// TestPendingBufferFlushesOnAck matches the walkthrough: d1 in flight, d2
// buffered while waiting, ack arrives and promotes d2 to in-flight.
func TestPendingBufferFlushesOnAck(t *testing.T) {
	c := New()
	c.LocalEdit(delta.Delta{delta.Insert("d1", nil)})

	out, err := c.LocalEdit(delta.Delta{delta.Insert("d2", nil)})
	if err != nil {
		t.Fatalf("LocalEdit d2: %v", err)
	}
	if out.HasSendOp {
		t.Fatal("d2 must not be sent while d1 is in flight")
	}
	if !c.HasPending() {
		t.Fatal("expected pendingOp to hold d2")
	}

	ackOut := c.OpAck(4)
	if c.KnownVersion() != 4 {
		t.Fatalf("knownVersion = %d, want 4", c.KnownVersion())
	}
	if c.HasPending() {
		t.Fatal("pendingOp should have moved into inFlightOp")
	}
	if !ackOut.HasSendOp || ackOut.SendOpBase != 4 {
		t.Fatalf("ackOut = %+v, want send at base 4", ackOut)
	}
}

// TestReceiveOpTransformsInFlight matches the walkthrough: inFlightOp is
// [{insert:"X"}] at base 3 (already rendered optimistically in the view);
// a receive-op for [{insert:"Y"}] at version 4 arrives. The remote op's
// insert is placed after X in the view (X already holds the position tie
// since it's already there); the in-flight op itself is unaffected since
// transforming it with priority=false lets it keep the tie (stays put,
// still [{insert:"X"}]).
func TestReceiveOpTransformsInFlight(t *testing.T) {
	c := New()
	c.LocalEdit(delta.Delta{delta.Insert("X", nil)})

	if err := c.ReceiveOp(delta.Delta{delta.Insert("Y", nil)}, 4); err != nil {
		t.Fatalf("ReceiveOp: %v", err)
	}
	if c.KnownVersion() != 4 {
		t.Fatalf("knownVersion = %d, want 4", c.KnownVersion())
	}

	got := applyToString("", c.View)
	if got != "XY" {
		t.Fatalf("view = %q, want %q", got, "XY")
	}

	if !c.HasInFlight() {
		t.Fatal("expected inFlightOp to survive the transform")
	}
}

func TestOpErrorClearsLocalStateAndAsksForResync(t *testing.T) {
	c := New()
	c.LocalEdit(delta.Delta{delta.Insert("X", nil)})
	c.LocalEdit(delta.Delta{delta.Insert("Y", nil)})

	out := c.OpError()
	if !out.Resync {
		t.Fatal("expected a resync request")
	}
	if c.HasInFlight() || c.HasPending() {
		t.Fatal("expected both cells cleared")
	}
}

// TestCatchupSetsKnownVersionFromCurrentVersionEvenWhenEmpty checks that a
// catchup-ops frame with an empty ops list still moves knownVersion from
// its old value (3) to the frame's currentVersion (6) and leaves the view
// untouched.
func TestCatchupSetsKnownVersionFromCurrentVersionEvenWhenEmpty(t *testing.T) {
	c := New()
	c.DocSnapshot(delta.Delta{delta.Insert("hello", nil)}, 3)

	if err := c.Catchup(nil, 6); err != nil {
		t.Fatalf("Catchup: %v", err)
	}
	if c.KnownVersion() != 6 {
		t.Fatalf("knownVersion = %d, want 6", c.KnownVersion())
	}
	if applyToString("", c.View) != "hello" {
		t.Fatalf("view = %q, want unchanged %q", applyToString("", c.View), "hello")
	}
}

func TestCatchupReplaysOpsInOrder(t *testing.T) {
	c := New()
	c.DocSnapshot(delta.Delta{}, 3)

	ops := []delta.Delta{
		{delta.Insert("A", nil)},
		{delta.Retain(1, nil), delta.Insert("B", nil)},
		{delta.Retain(2, nil), delta.Insert("C", nil)},
	}
	if err := c.Catchup(ops, 6); err != nil {
		t.Fatalf("Catchup: %v", err)
	}
	if c.KnownVersion() != 6 {
		t.Fatalf("knownVersion = %d, want 6", c.KnownVersion())
	}
	if got := applyToString("", c.View); got != "ABC" {
		t.Fatalf("view = %q, want %q", got, "ABC")
	}
}

func TestDocSnapshotResetsState(t *testing.T) {
	c := New()
	c.LocalEdit(delta.Delta{delta.Insert("X", nil)})

	c.DocSnapshot(delta.Delta{delta.Insert("hello", nil)}, 9)
	if c.KnownVersion() != 9 || c.HasInFlight() || c.HasPending() {
		t.Fatalf("state after snapshot: v=%d inFlight=%v pending=%v", c.KnownVersion(), c.HasInFlight(), c.HasPending())
	}
	if applyToString("", c.View) != "hello" {
		t.Fatalf("view = %q", applyToString("", c.View))
	}
}
