package notify

import (
	"context"
	"log/slog"
)

// Directory resolves the data needed to address a notification.
type Directory interface {
	TenantEmail(tenantID int64) (string, error)
	PropertyName(propertyID int64) (string, error)
}

// Sender delivers a message.
type Sender interface {
	Send(to []string, subject, body string) error
}

// Dispatcher records every event in a History and forwards it to the
// tenant through a Sender.
type Dispatcher struct {
	history   *History
	sender    Sender
	directory Directory
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(history *History, sender Sender, directory Directory) *Dispatcher {
	return &Dispatcher{history: history, sender: sender, directory: directory}
}

// Run consumes events until the channel closes or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			d.Handle(e)
		}
	}
}

// Handle records and delivers a single event. Delivery failures are
// logged, never returned.
func (d *Dispatcher) Handle(e Event) {
	d.history.Add(e)

	to, err := d.directory.TenantEmail(e.TenantID)
	if err != nil {
		slog.Warn("resolving notification recipient", "event", e.Type, "tenant_id", e.TenantID, "error", err)
		return
	}
	if to == "" {
		slog.Debug("tenant has no email, skipping notification", "event", e.Type, "tenant_id", e.TenantID)
		return
	}

	name, err := d.directory.PropertyName(e.PropertyID)
	if err != nil {
		slog.Warn("resolving property name", "property_id", e.PropertyID, "error", err)
	}

	subject, body := FormatMessage(e, name)
	if err := d.sender.Send([]string{to}, subject, body); err != nil {
		slog.Warn("delivering notification", "event", e.Type, "viewing_id", e.ViewingID, "error", err)
	}
}
