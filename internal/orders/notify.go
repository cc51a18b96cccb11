package orders

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/greenmandi/hubstock/internal/kafka"
)

// KafkaNotifier publishes terminal order events for downstream consumers
// (SMS/email senders, dashboards). One producer per topic, all best-effort.
type KafkaNotifier struct {
	Confirmed *kafkax.Producer
	Failed    *kafkax.Producer
	Cancelled *kafkax.Producer
	Service   string
}

func (n *KafkaNotifier) OrderConfirmed(o *Order) {
	n.publish(n.Confirmed, EventOrderConfirmed, o.ID, kafkax.MustMarshal(OrderConfirmedPayload{
		OrderID:    o.ID.String(),
		HubID:      o.HubID.String(),
		CustomerID: o.CustomerID,
		TotalPaise: o.TotalPaise,
	}))
}

func (n *KafkaNotifier) OrderFailed(o *Order, reason string) {
	n.publish(n.Failed, EventOrderFailed, o.ID, kafkax.MustMarshal(OrderFailedPayload{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID,
		Reason:     reason,
	}))
}

func (n *KafkaNotifier) OrderCancelled(o *Order, reason string) {
	n.publish(n.Cancelled, EventOrderCancelled, o.ID, kafkax.MustMarshal(OrderCancelledPayload{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID,
		Reason:     reason,
	}))
}

func (n *KafkaNotifier) publish(p *kafkax.Producer, eventType string, orderID uuid.UUID, payload []byte) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: orderID.String(),
		Payload:       payload,
	}
	p.Publish(PartitionKey(orderID.String()), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
