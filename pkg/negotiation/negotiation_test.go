package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickVehicle_FitBeatsNoFit(t *testing.T) {
	candidates := []VehicleCandidate{
		{VehicleID: "v1", CanFit: false, DeliveryTime: 1},
		{VehicleID: "v2", CanFit: true, DeliveryTime: 100},
	}
	winner, ok := PickVehicle(candidates)
	assert.True(t, ok)
	assert.Equal(t, "v2", winner.VehicleID, "a fitting vehicle wins even with a worse delivery time")
}

func TestPickVehicle_LowerDeliveryTimeWinsWithinClass(t *testing.T) {
	candidates := []VehicleCandidate{
		{VehicleID: "v1", CanFit: true, DeliveryTime: 10},
		{VehicleID: "v2", CanFit: true, DeliveryTime: 5},
	}
	winner, ok := PickVehicle(candidates)
	assert.True(t, ok)
	assert.Equal(t, "v2", winner.VehicleID)
}

func TestPickVehicle_EmptyReturnsFalse(t *testing.T) {
	_, ok := PickVehicle(nil)
	assert.False(t, ok)
}

func TestNearest_PicksLowestTravelTime(t *testing.T) {
	candidates := []SellerCandidate{
		{SellerID: "s1", Location: 10},
		{SellerID: "s2", Location: 20},
	}
	travelTime := func(from, to int) float64 {
		if to == 20 {
			return 1
		}
		return 5
	}
	winner, ok := Nearest(candidates, 0, travelTime)
	assert.True(t, ok)
	assert.Equal(t, "s2", winner.SellerID)
}

func TestNearest_EmptyReturnsFalse(t *testing.T) {
	_, ok := Nearest(nil, 0, func(int, int) float64 { return 0 })
	assert.False(t, ok)
}
