package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"droppers-api/models"
)

// View is a client-side mirror of the orders a connection cares about. It
// folds server frames into local state and can be reset from a REST fetch
// after a reconnect gap.
type View struct {
	mu        sync.Mutex
	available map[string]models.Order
	owned     map[string]models.Order
}

func NewView() *View {
	return &View{
		available: make(map[string]models.Order),
		owned:     make(map[string]models.Order),
	}
}

// Reset replaces local state with freshly fetched lists.
func (v *View) Reset(available, owned []models.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.available = make(map[string]models.Order, len(available))
	for _, o := range available {
		v.available[o.ID] = o
	}
	v.owned = make(map[string]models.Order, len(owned))
	for _, o := range owned {
		v.owned[o.ID] = o
	}
}

// Apply folds one server frame into the view. Unknown events are ignored.
func (v *View) Apply(f Frame) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch f.Event {
	case EventOrderCreated:
		var o models.Order
		if err := json.Unmarshal(f.Data, &o); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		if o.Status == models.StatusPending && o.DropperID == nil {
			v.available[o.ID] = o
		}
	case EventOrderAccepted:
		var p OrderAcceptedPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		delete(v.available, p.OrderID)
		if p.Order != nil {
			if _, ok := v.owned[p.OrderID]; ok {
				v.owned[p.OrderID] = *p.Order
			}
		}
	case EventOrderCancelled:
		var p OrderCancelledPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		delete(v.available, p.OrderID)
		if o, ok := v.owned[p.OrderID]; ok {
			o.Status = models.StatusCancelled
			v.owned[p.OrderID] = o
		}
	case EventDeliveryStatusChanged, EventDeliveryCompleted:
		var p OrderUpdatePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		if p.Order != nil {
			v.owned[p.Order.ID] = *p.Order
		}
	}
	return nil
}

// Track adds an order to the owned set, e.g. after the client created it.
func (v *View) Track(o models.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.owned[o.ID] = o
}

func (v *View) Available() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, 0, len(v.available))
	for id := range v.available {
		ids = append(ids, id)
	}
	return ids
}

// Owned returns the tracked order with id.
func (v *View) Owned(id string) (models.Order, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	o, ok := v.owned[id]
	return o, ok
}
