package ward

import "strconv"

// BedsPerRoom is the room capacity heuristic used when deriving topology
// from a ward's requested total bed count.
const BedsPerRoom = 4

// MaxTotalBeds caps the bed count a single ward may be provisioned with.
const MaxTotalBeds = 2000

// RoomPlan describes one room to create during provisioning.
type RoomPlan struct {
	RoomNumber string
	Beds       int
}

// PlanTopology splits totalBeds across ceil(totalBeds/BedsPerRoom) rooms.
// Beds are spread evenly; the first totalBeds mod rooms rooms take one extra.
// Rooms are numbered "1".."n". A non-positive total, or one above
// MaxTotalBeds, yields no rooms.
func PlanTopology(totalBeds int) []RoomPlan {
	if totalBeds <= 0 || totalBeds > MaxTotalBeds {
		return nil
	}

	roomsNeeded := totalBeds / BedsPerRoom
	if totalBeds%BedsPerRoom != 0 {
		roomsNeeded++
	}
	bedsPerRoom := totalBeds / roomsNeeded
	extraBeds := totalBeds % roomsNeeded

	plan := make([]RoomPlan, roomsNeeded)
	for i := range plan {
		beds := bedsPerRoom
		if i < extraBeds {
			beds++
		}
		plan[i] = RoomPlan{RoomNumber: strconv.Itoa(i + 1), Beds: beds}
	}
	return plan
}

// bedNumbers returns "1".."n". Numbers restart in every room.
func bedNumbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}
