package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"droppers-api/apperr"
	"droppers-api/models"
)

func TestNext_AllowedTransitions(t *testing.T) {
	cases := []struct {
		from  models.OrderStatus
		event Event
		actor models.UserRole
		want  models.OrderStatus
	}{
		{models.StatusPending, EventAccept, models.RoleDeliveryPartner, models.StatusAssigned},
		{models.StatusPending, EventCancel, models.RoleVendor, models.StatusCancelled},
		{models.StatusAssigned, EventPickUp, models.RoleDeliveryPartner, models.StatusPickedUp},
		{models.StatusPickedUp, EventStartDelivery, models.RoleDeliveryPartner, models.StatusInTransit},
		{models.StatusInTransit, EventComplete, models.RoleDeliveryPartner, models.StatusDelivered},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.event, tc.actor)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestNext_RejectsWrongActorAndState(t *testing.T) {
	_, err := Next(models.StatusPending, EventAccept, models.RoleVendor)
	require.True(t, apperr.Is(err, apperr.InvalidTransition))

	_, err = Next(models.StatusAssigned, EventCancel, models.RoleVendor)
	require.True(t, apperr.Is(err, apperr.InvalidTransition))

	_, err = Next(models.StatusDelivered, EventComplete, models.RoleDeliveryPartner)
	require.True(t, apperr.Is(err, apperr.InvalidTransition))
	require.Contains(t, apperr.MessageOf(err), "terminal")
}

func TestCanTransition_NoSkippingOrBackwards(t *testing.T) {
	ev, err := CanTransition(models.StatusPickedUp, models.StatusInTransit, models.RoleDeliveryPartner)
	require.NoError(t, err)
	require.Equal(t, EventStartDelivery, ev)

	bad := [][2]models.OrderStatus{
		{models.StatusAssigned, models.StatusInTransit},
		{models.StatusAssigned, models.StatusDelivered},
		{models.StatusInTransit, models.StatusPickedUp},
		{models.StatusPickedUp, models.StatusAssigned},
		{models.StatusAssigned, models.StatusPending},
		{models.StatusCancelled, models.StatusPending},
	}
	for _, pair := range bad {
		_, err := CanTransition(pair[0], pair[1], models.RoleDeliveryPartner)
		require.Error(t, err, "%s -> %s", pair[0], pair[1])
	}
}

func TestTerminalStates(t *testing.T) {
	require.True(t, IsTerminal(models.StatusDelivered))
	require.True(t, IsTerminal(models.StatusCancelled))
	require.False(t, IsTerminal(models.StatusPending))
	require.ElementsMatch(t,
		[]models.OrderStatus{models.StatusAssigned, models.StatusCancelled},
		ValidTransitionsFrom(models.StatusPending))
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	require.Len(t, all, 5)
	all[0].To = models.StatusDelivered
	require.Equal(t, models.StatusAssigned, All()[0].To)
}
