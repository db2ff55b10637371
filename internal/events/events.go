// Package events fans order changes out to dashboards and other services.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event describes a change to one order. Order numbers are not included
// because they shift whenever an earlier order is deleted; consumers re-fetch.
type Event struct {
	Type              string    `json:"type"`
	OrderID           uuid.UUID `json:"orderId"`
	Status            string    `json:"status,omitempty"`
	PaymentStatus     string    `json:"paymentStatus,omitempty"`
	FulfillmentStatus string    `json:"fulfillmentStatus,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
