package app

import (
	"sync"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
)

// NegotiationKey identifies an offer that still awaits its answer.
type NegotiationKey struct {
	Initiator core.SessionID
	Target    core.SessionID
	Channel   domain.Channel
}

// NegotiationTracker guards against stale or duplicate answers. Each key is
// mutated atomically on its own; unrelated pairs never contend on a lock.
type NegotiationTracker struct {
	pending sync.Map // NegotiationKey -> struct{}
}

func NewNegotiationTracker() *NegotiationTracker {
	return &NegotiationTracker{}
}

// MarkPending records an offer from initiator to target. A re-offer
// before the answer simply overwrites the entry; superseded reports that.
func (t *NegotiationTracker) MarkPending(initiator, target core.SessionID, ch domain.Channel) (superseded bool) {
	_, superseded = t.pending.Swap(NegotiationKey{Initiator: initiator, Target: target, Channel: ch}, struct{}{})
	return superseded
}

// ConsumeIfPending is called with the answer's sender as answerer and the
// original offerer as offerer. It removes the (offerer, answerer, ch) entry
// and reports whether it existed; only one caller can ever win it.
func (t *NegotiationTracker) ConsumeIfPending(answerer, offerer core.SessionID, ch domain.Channel) bool {
	_, ok := t.pending.LoadAndDelete(NegotiationKey{Initiator: offerer, Target: answerer, Channel: ch})
	return ok
}

// Forget drops every pending exchange sid takes part in.
func (t *NegotiationTracker) Forget(sid core.SessionID) int {
	n := 0
	t.pending.Range(func(k, _ any) bool {
		key := k.(NegotiationKey)
		if key.Initiator == sid || key.Target == sid {
			t.pending.Delete(key)
			n++
		}
		return true
	})
	return n
}
