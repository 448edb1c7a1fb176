// Package realtime fans committed order changes out to connected websocket
// clients grouped into rooms.
package realtime

import (
	"encoding/json"
	"time"

	"droppers-api/models"
)

// Server -> client events.
const (
	EventOrderCreated          = "order:created"
	EventOrderAccepted         = "order:accepted"
	EventOrderCancelled        = "order:cancelled"
	EventDeliveryStatusChanged = "delivery:status-changed"
	EventDeliveryCompleted     = "delivery:completed"
	EventAck                   = "ack"
)

// Client -> server requests.
const (
	RequestJoinVendor          = "join:vendor"
	RequestJoinDropper         = "join:dropper"
	RequestJoinAvailableOrders = "join:available-orders"
	RequestAcceptOrder         = "order:accept"
	RequestStatusUpdate        = "delivery:status-update"
	RequestDeliveryCompleted   = "delivery:completed"
)

const RoomAvailableOrders = "available-orders"

func VendorRoom(id string) string  { return "vendor:" + id }
func DropperRoom(id string) string { return "dropper:" + id }

// Frame is the single message shape on the socket in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// AckPayload answers a request that carried an ack id.
type AckPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type OrderAcceptedPayload struct {
	OrderID   string        `json:"orderId"`
	Timestamp time.Time     `json:"timestamp"`
	Order     *models.Order `json:"order,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"orderId"`
}

// OrderUpdatePayload carries delivery:status-changed and delivery:completed.
type OrderUpdatePayload struct {
	Order     *models.Order `json:"order"`
	Timestamp time.Time     `json:"timestamp"`
}

type acceptRequest struct {
	OrderID   string `json:"orderId"`
	DropperID string `json:"dropperId"`
}

type statusRequest struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}

type joinRequest struct {
	ID string `json:"id"`
}

func encodeFrame(event, ack string, data any) ([]byte, error) {
	f := Frame{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		f.Data = raw
	}
	return json.Marshal(f)
}
