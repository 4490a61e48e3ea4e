package orders

const (
	TopicOrderCreated         = "order.created"
	TopicOrderStatusChanged   = "order.status.changed"
	TopicPaymentStatusChanged = "order.payment.changed"
	TopicPaymentNotifications = "payment.notifications"
)

// TopicFor maps an event type to the topic it is published on.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderStatusChanged:
		return TopicOrderStatusChanged
	case EventPaymentStatusChanged:
		return TopicPaymentStatusChanged
	}
	return ""
}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
