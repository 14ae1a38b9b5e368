package intentpay

import "sync"

// NotifierEvent identifies a lifecycle milestone exposed to host code.
type NotifierEvent string

// Milestones delivered at most once per (event, order id) pair.
const (
	NotifierPaymentStarted   NotifierEvent = "payment_started"
	NotifierPaymentCompleted NotifierEvent = "payment_completed"
	NotifierPaymentBounced   NotifierEvent = "payment_bounced"
	NotifierPayoutCompleted  NotifierEvent = "payout_completed"
)

// NotifierCallback receives a milestone for an order. Payload carries the
// order snapshot (or push data) that triggered the milestone.
type NotifierCallback func(orderID string, payload interface{})

type notifierSub struct {
	id int
	cb NotifierCallback
}

// Notifier is a deduplicating publish/subscribe channel for lifecycle
// milestones. Host applications re-render and re-subscribe freely; each
// (event, order id) pair is delivered at most once until Reset clears it.
//
// Notifiers are instance-scoped: construct one per checkout session so
// independent checkouts on one page never cross-contaminate dedup state.
type Notifier struct {
	mu        sync.Mutex
	subs      map[NotifierEvent][]notifierSub
	delivered map[string]struct{}
	nextID    int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		subs:      make(map[NotifierEvent][]notifierSub),
		delivered: make(map[string]struct{}),
	}
}

// Subscribe registers a callback for an event type and returns its
// unsubscribe function.
func (n *Notifier) Subscribe(event NotifierEvent, cb NotifierCallback) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[event] = append(n.subs[event], notifierSub{id: id, cb: cb})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[event]
		for i, sub := range subs {
			if sub.id == id {
				n.subs[event] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes all current subscribers for the event exactly once per
// (event, orderID) pair. Subsequent emits for the same pair are silently
// dropped until Reset(orderID) clears the record.
func (n *Notifier) Emit(event NotifierEvent, orderID string, payload interface{}) {
	n.mu.Lock()
	key := dedupKey(event, orderID)
	if _, seen := n.delivered[key]; seen {
		n.mu.Unlock()
		return
	}
	n.delivered[key] = struct{}{}
	subs := make([]notifierSub, len(n.subs[event]))
	copy(subs, n.subs[event])
	n.mu.Unlock()

	for _, sub := range subs {
		sub.cb(orderID, payload)
	}
}

// Reset clears dedup records for one order, allowing its milestones to be
// delivered again.
func (n *Notifier) Reset(orderID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, event := range []NotifierEvent{
		NotifierPaymentStarted,
		NotifierPaymentCompleted,
		NotifierPaymentBounced,
		NotifierPayoutCompleted,
	} {
		delete(n.delivered, dedupKey(event, orderID))
	}
}

// ResetAll clears every dedup record.
func (n *Notifier) ResetAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = make(map[string]struct{})
}

func dedupKey(event NotifierEvent, orderID string) string {
	return string(event) + ":" + orderID
}
