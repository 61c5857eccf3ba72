package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceRequestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ServiceRequestStatus
		to   ServiceRequestStatus
		want bool
	}{
		{StatusPending, StatusDispatched, true},
		{StatusPending, StatusResolved, true},
		{StatusDispatched, StatusInProgress, true},
		{StatusInProgress, StatusPending, true},
		{StatusInProgress, StatusResolved, true},
		{StatusResolved, StatusPending, true},
		{StatusResolved, StatusDispatched, false},
		{StatusResolved, StatusInProgress, false},
		{StatusPending, StatusPending, false},
		{StatusPending, "closed", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseEquipmentType(t *testing.T) {
	got, ok := ParseEquipmentType(" lift ")
	assert.True(t, ok)
	assert.Equal(t, EquipmentLift, got)

	got, ok = ParseEquipmentType("hvac")
	assert.True(t, ok)
	assert.Equal(t, EquipmentHVAC, got)

	_, ok = ParseEquipmentType("Boiler")
	assert.False(t, ok)

	assert.Len(t, EquipmentTypeNames(), len(EquipmentTypes))
}
