// Package negotiation holds the pure scoring rules shared by every
// accept/propose negotiation in the system: the warehouse/supplier
// vehicle-assignment negotiation and the store/warehouse buy negotiations.
// Deliberately free of bus or timing concerns — callers own collection and
// timeouts, this package only answers "which candidate wins". Grounded on
// spec.md §4.5's scoring rules; shared because §4.7 states the supplier's
// vehicle assignment "proceeds identically" to the warehouse's.
package negotiation

// VehicleCandidate is one vehicle-proposal reply collected during a
// vehicle-assignment negotiation.
type VehicleCandidate struct {
	VehicleID    string
	CanFit       bool
	DeliveryTime float64
}

// PickVehicle scores candidates per spec.md §4.5 step 3: can_fit=true wins
// over can_fit=false; within a class, lower delivery_time wins. Returns
// false if candidates is empty.
func PickVehicle(candidates []VehicleCandidate) (VehicleCandidate, bool) {
	if len(candidates) == 0 {
		return VehicleCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if vehicleBeats(c, best) {
			best = c
		}
	}
	return best, true
}

func vehicleBeats(a, b VehicleCandidate) bool {
	if a.CanFit != b.CanFit {
		return a.CanFit
	}
	return a.DeliveryTime < b.DeliveryTime
}

// SellerCandidate is one accept reply collected during a buy negotiation
// (warehouse-accept or supplier-accept).
type SellerCandidate struct {
	SellerID string
	Location int
}

// Nearest picks the candidate with the lowest travel time from
// fromLocation, per spec.md's "pick the nearest ... by sender<->receiver
// Dijkstra time". travelTime is supplied by the caller so this package
// never touches pkg/graph directly.
func Nearest(candidates []SellerCandidate, fromLocation int, travelTime func(from, to int) float64) (SellerCandidate, bool) {
	if len(candidates) == 0 {
		return SellerCandidate{}, false
	}
	best := candidates[0]
	bestTime := travelTime(fromLocation, best.Location)
	for _, c := range candidates[1:] {
		t := travelTime(fromLocation, c.Location)
		if t < bestTime {
			best, bestTime = c, t
		}
	}
	return best, true
}
