package realtime

import (
	"github.com/google/uuid"

	"droppers-api/models"
	"droppers-api/service"
)

// Client is one connection's state: who it is and which rooms it joined.
// rooms is guarded by the hub's lock.
type Client struct {
	id     string
	caller service.Caller
	send   chan []byte
	rooms  map[string]struct{}
}

func newClient(caller service.Caller, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		id:     uuid.NewString(),
		caller: caller,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) ID() string             { return c.id }
func (c *Client) Caller() service.Caller { return c.caller }

// Outbound is the client's queue of encoded frames. It is closed when the hub
// drops the client.
func (c *Client) Outbound() <-chan []byte { return c.send }

// canJoin reports whether the client may subscribe to room.
func (c *Client) canJoin(room string) bool {
	if c.caller.Role == models.RoleAdmin {
		return true
	}
	switch room {
	case RoomAvailableOrders:
		return c.caller.Role == models.RoleDeliveryPartner
	case VendorRoom(c.caller.ID):
		return c.caller.Role == models.RoleVendor
	case DropperRoom(c.caller.ID):
		return c.caller.Role == models.RoleDeliveryPartner
	}
	return false
}

// homeRooms are joined automatically on connect.
func (c *Client) homeRooms() []string {
	switch c.caller.Role {
	case models.RoleVendor:
		return []string{VendorRoom(c.caller.ID)}
	case models.RoleDeliveryPartner:
		return []string{DropperRoom(c.caller.ID), RoomAvailableOrders}
	}
	return nil
}
