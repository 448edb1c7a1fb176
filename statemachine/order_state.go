package statemachine

import (
	"strings"

	"droppers-api/apperr"
	"droppers-api/models"
)

// Event names an action that moves an order between states
type Event string

const (
	EventAccept        Event = "accept"
	EventCancel        Event = "cancel"
	EventPickUp        Event = "pick_up"
	EventStartDelivery Event = "start_delivery"
	EventComplete      Event = "complete"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus `json:"from"`
	Event Event              `json:"event"`
	Actor models.UserRole    `json:"actor"`
	To    models.OrderStatus `json:"to"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// Any delivery partner may claim an unassigned order
	{From: models.StatusPending, Event: EventAccept, Actor: models.RoleDeliveryPartner, To: models.StatusAssigned},
	// Only the owning vendor cancels, and only before assignment
	{From: models.StatusPending, Event: EventCancel, Actor: models.RoleVendor, To: models.StatusCancelled},
	// The assigned partner drives the rest
	{From: models.StatusAssigned, Event: EventPickUp, Actor: models.RoleDeliveryPartner, To: models.StatusPickedUp},
	{From: models.StatusPickedUp, Event: EventStartDelivery, Actor: models.RoleDeliveryPartner, To: models.StatusInTransit},
	{From: models.StatusInTransit, Event: EventComplete, Actor: models.RoleDeliveryPartner, To: models.StatusDelivered},
}

type eventKey struct {
	From  models.OrderStatus
	Event Event
	Actor models.UserRole
}

type targetKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor models.UserRole
}

var (
	byEvent  = map[eventKey]models.OrderStatus{}
	byTarget = map[targetKey]Event{}
)

func init() {
	for _, t := range validTransitions {
		byEvent[eventKey{t.From, t.Event, t.Actor}] = t.To
		byTarget[targetKey{t.From, t.To, t.Actor}] = t.Event
	}
}

// Next returns the state reached when actor fires event in state from.
func Next(from models.OrderStatus, event Event, actor models.UserRole) (models.OrderStatus, error) {
	if to, ok := byEvent[eventKey{from, event, actor}]; ok {
		return to, nil
	}
	return "", apperr.Newf(apperr.InvalidTransition,
		"cannot %s an order in status %s as %s; valid next states: %s",
		strings.ReplaceAll(string(event), "_", " "), from, actor, describeValidFrom(from))
}

// CanTransition checks if a given actor can move from one state to another
// and returns the event that does it.
func CanTransition(from, to models.OrderStatus, actor models.UserRole) (Event, error) {
	if ev, ok := byTarget[targetKey{from, to, actor}]; ok {
		return ev, nil
	}
	return "", apperr.Newf(apperr.InvalidTransition,
		"invalid transition %s -> %s for %s; valid next states: %s",
		from, to, actor, describeValidFrom(from))
}

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status models.OrderStatus) bool {
	return len(ValidTransitionsFrom(status)) == 0
}

func describeValidFrom(status models.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// All returns a copy of the full state machine for documentation
func All() []Transition {
	out := make([]Transition, len(validTransitions))
	copy(out, validTransitions)
	return out
}
