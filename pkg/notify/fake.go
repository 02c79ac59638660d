package notify

import (
	"context"
	"sync"
)

// Delivery records one Deliver call made against a FakeNotifier.
type Delivery struct {
	Recipient string
	Subject   string
	Body      string
}

// FakeNotifier records deliveries and can be scripted to fail. For tests.
type FakeNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery

	// FailWith, when non-nil, is returned by every Deliver call.
	FailWith error

	// FailNext fails only the next Deliver call, then clears itself.
	FailNext error
}

// NewFakeNotifier creates a fake notifier that accepts every delivery.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// Deliver records the call and returns the scripted error, if any.
func (n *FakeNotifier) Deliver(ctx context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.FailNext != nil {
		err := n.FailNext
		n.FailNext = nil
		return err
	}
	if n.FailWith != nil {
		return n.FailWith
	}

	n.deliveries = append(n.deliveries, Delivery{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

// Deliveries returns a copy of the successful deliveries so far.
func (n *FakeNotifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}
