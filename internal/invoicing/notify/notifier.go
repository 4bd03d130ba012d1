// Package notify carries the invoice-created event to its consumers. The
// core calls one Notifier; composition at the edge decides whether that is
// the in-process hub, the Kafka producer, or both.
package notify

import (
	"context"
	"errors"
	"sync"

	"fakturo/internal/invoicing/models"
)

// Notifier is the outbound capability the coordinator calls exactly once
// per created invoice.
type Notifier interface {
	InvoiceCreated(ctx context.Context, event models.InvoiceCreated) error
}

// Fanout emits to every wrapped notifier and joins their errors. A failing
// consumer does not stop the others.
type Fanout []Notifier

func (f Fanout) InvoiceCreated(ctx context.Context, event models.InvoiceCreated) error {
	var errs []error
	for _, n := range f {
		if err := n.InvoiceCreated(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Listener is an in-process consumer of invoice-created events.
type Listener func(ctx context.Context, event models.InvoiceCreated) error

// Hub dispatches events to in-process listeners (e.g. the rendering
// handoff) synchronously, in subscription order.
type Hub struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a listener. Listeners added after an event is
// dispatched do not receive it.
func (h *Hub) Subscribe(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

func (h *Hub) InvoiceCreated(ctx context.Context, event models.InvoiceCreated) error {
	h.mu.RLock()
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
