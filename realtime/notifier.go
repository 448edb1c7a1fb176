package realtime

import (
	"context"
	"time"

	"droppers-api/models"
	"droppers-api/service"
)

// Notifier routes order service notifications into hub rooms.
type Notifier struct {
	hub *Hub
	now func() time.Time
}

var _ service.Notifier = (*Notifier)(nil)

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub, now: time.Now}
}

// OrderCreated announces a new delivery candidate.
func (n *Notifier) OrderCreated(ctx context.Context, o *models.Order) {
	n.hub.Publish(ctx, RoomAvailableOrders, EventOrderCreated, o)
}

// OrderAccepted removes the order from other partners' views and tells the
// vendor who took it.
func (n *Notifier) OrderAccepted(ctx context.Context, o *models.Order) {
	payload := OrderAcceptedPayload{OrderID: o.ID, Timestamp: n.now().UTC(), Order: o}
	n.hub.Publish(ctx, RoomAvailableOrders, EventOrderAccepted, payload)
	n.hub.Publish(ctx, VendorRoom(o.VendorID), EventOrderAccepted, payload)
}

func (n *Notifier) OrderCancelled(ctx context.Context, o *models.Order) {
	n.hub.Publish(ctx, RoomAvailableOrders, EventOrderCancelled, OrderCancelledPayload{OrderID: o.ID})
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, o *models.Order) {
	n.hub.Publish(ctx, VendorRoom(o.VendorID), EventDeliveryStatusChanged,
		OrderUpdatePayload{Order: o, Timestamp: n.now().UTC()})
}

func (n *Notifier) DeliveryCompleted(ctx context.Context, o *models.Order) {
	n.hub.Publish(ctx, VendorRoom(o.VendorID), EventDeliveryCompleted,
		OrderUpdatePayload{Order: o, Timestamp: n.now().UTC()})
}
