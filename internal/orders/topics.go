package orders

const (
	TopicOrderConfirmed = "hub.order.confirmed"
	TopicOrderFailed    = "hub.order.failed"
	TopicOrderCancelled = "hub.order.cancelled"
)

// Partition key = order_id so every event for one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
