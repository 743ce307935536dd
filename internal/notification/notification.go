package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	KindTransferPosted    = "transfer.posted"
	KindTransferFailed    = "transfer.failed"
	KindTransferCancelled = "transfer.cancelled"
	KindTransferReversed  = "transfer.reversed"
)

// Event describes a committed transfer state change.
type Event struct {
	Kind          string    `json:"kind"`
	TransferID    uuid.UUID `json:"transfer_id"`
	FromAccountID uuid.UUID `json:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers events to downstream systems. Delivery is best effort and
// happens after the state change committed.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Publish writes the event to the structured logger.
func (n *LoggerNotifier) Publish(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", event.Kind,
		"transfer_id", event.TransferID.String(),
		"amount", event.Amount,
		"currency", event.Currency,
	)
	return nil
}

// NATSNotifier publishes events as JSON on "<prefix>.<kind>" subjects.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier builds a notifier on an established connection. prefix
// defaults to "ledger".
func NewNATSNotifier(conn *nats.Conn, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = "ledger"
	}
	return &NATSNotifier{conn: conn, prefix: prefix}
}

// Subject returns the subject an event kind is published on.
func (n *NATSNotifier) Subject(kind string) string {
	return n.prefix + "." + kind
}

// Publish encodes the event and hands it to the NATS client.
func (n *NATSNotifier) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(event.Kind), payload); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}

// Fanout publishes to every notifier and returns the first error.
type Fanout []Notifier

// Publish delivers the event to all notifiers even when one fails.
func (f Fanout) Publish(ctx context.Context, event Event) error {
	var first error
	for _, n := range f {
		if err := n.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
