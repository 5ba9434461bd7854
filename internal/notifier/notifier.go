// Package notifier broadcasts pipeline events over redis pub/sub so
// connected clients see SMS status changes as they happen. Delivery is
// fire and forget; a lost event never blocks the pipeline.
package notifier

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gikundiro/momo-gateway/pkg/logger"
	"github.com/gikundiro/momo-gateway/pkg/redis"
)

const (
	EventSmsReceived  = "sms.received"
	EventSmsParsed    = "sms.parsed"
	EventSmsReconcile = "sms.reconciled"
)

// Event is the wire format published to subscribers.
type Event struct {
	Type       string    `json:"type"`
	SmsID      uuid.UUID `json:"sms_id"`
	Status     string    `json:"status,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier struct {
	adapter redis.RedisAdapter
	channel string
}

func New(adapter redis.RedisAdapter, channel string) *Notifier {
	if channel == "" {
		channel = "sms-events"
	}
	return &Notifier{adapter: adapter, channel: channel}
}

func (n *Notifier) Channel() string { return n.channel }

// Notify publishes an event. Failures are logged and swallowed.
func (n *Notifier) Notify(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal event", "type", event.Type, "error", err.Error())
		return
	}

	if err := n.adapter.Publish(n.channel, payload); err != nil {
		logger.Warn("event publish failed", "type", event.Type, "sms_id", event.SmsID, "error", err.Error())
	}
}

func (n *Notifier) SmsReceived(smsID uuid.UUID) {
	n.Notify(Event{Type: EventSmsReceived, SmsID: smsID, Status: "received"})
}

func (n *Notifier) SmsParsed(smsID uuid.UUID, status string) {
	n.Notify(Event{Type: EventSmsParsed, SmsID: smsID, Status: status})
}

func (n *Notifier) SmsReconciled(smsID uuid.UUID, outcome string) {
	n.Notify(Event{Type: EventSmsReconcile, SmsID: smsID, Outcome: outcome})
}
