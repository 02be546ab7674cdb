package after

import "sync"

// CloseNotifier is a single-fire broadcast implementing the close-signal
// contract: every subscribed resolver is invoked exactly once when Fire is
// called, and a resolver subscribed after Fire is invoked immediately. The
// request pipeline creates one per request and fires it once the response has
// been fully flushed.
type CloseNotifier struct {
	mu     sync.Mutex
	closed bool
	subs   []func()
}

// NewCloseNotifier creates an unfired notifier.
func NewCloseNotifier() *CloseNotifier {
	return &CloseNotifier{}
}

// Subscribe registers resolve. The method value satisfies CloseSignalFunc.
func (n *CloseNotifier) Subscribe(resolve func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		// Late subscription: the response already closed.
		resolve()
		return
	}

	n.subs = append(n.subs, resolve)
	n.mu.Unlock()
}

// Fire marks the response closed and invokes all subscribed resolvers in
// subscription order. Calling Fire again is a no-op.
func (n *CloseNotifier) Fire() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}

	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	for _, resolve := range subs {
		resolve()
	}
}

// Closed reports whether Fire has been called.
func (n *CloseNotifier) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.closed
}
