package ward

import (
	"time"

	"github.com/google/uuid"
)

// BedStatus is the occupancy state of a single bed.
type BedStatus string

const (
	BedAvailable   BedStatus = "AVAILABLE"
	BedOccupied    BedStatus = "OCCUPIED"
	BedReserved    BedStatus = "RESERVED"
	BedCleaning    BedStatus = "CLEANING"
	BedMaintenance BedStatus = "MAINTENANCE"
)

var validBedStatuses = map[BedStatus]bool{
	BedAvailable:   true,
	BedOccupied:    true,
	BedReserved:    true,
	BedCleaning:    true,
	BedMaintenance: true,
}

// Valid reports whether s is one of the five known bed statuses.
func (s BedStatus) Valid() bool { return validBedStatuses[s] }

// RoomType classifies a room. Provisioning creates GENERAL rooms only.
type RoomType string

const (
	RoomGeneral     RoomType = "GENERAL"
	RoomSemiPrivate RoomType = "SEMI_PRIVATE"
	RoomPrivate     RoomType = "PRIVATE"
	RoomICU         RoomType = "ICU"
)

// RoomStatus is descriptive and not reconciled against bed states.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomCleaning    RoomStatus = "CLEANING"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

// Ward maps to the ward table. OccupiedBeds is a cached count of OCCUPIED
// beds across the ward's rooms, refreshed inside every bed mutation.
type Ward struct {
	ID           uuid.UUID `db:"id" json:"id"`
	WardName     string    `db:"ward_name" json:"ward_name"`
	Department   string    `db:"department" json:"department"`
	TotalBeds    int       `db:"total_beds" json:"total_beds"`
	OccupiedBeds int       `db:"occupied_beds" json:"occupied_beds"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Room maps to the room table.
type Room struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	WardID     uuid.UUID  `db:"ward_id" json:"ward_id"`
	RoomNumber string     `db:"room_number" json:"room_number"`
	TotalBeds  int        `db:"total_beds" json:"total_beds"`
	RoomType   RoomType   `db:"room_type" json:"room_type"`
	Status     RoomStatus `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Bed maps to the bed table. OccupantPatientID and OccupancyStartDate are set
// exactly when Status is OCCUPIED. BedNumber repeats across rooms; only ID
// identifies a bed.
type Bed struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	RoomID             uuid.UUID  `db:"room_id" json:"room_id"`
	BedNumber          string     `db:"bed_number" json:"bed_number"`
	Status             BedStatus  `db:"status" json:"status"`
	OccupantPatientID  *uuid.UUID `db:"occupant_patient_id" json:"occupant_patient_id"`
	OccupancyStartDate *time.Time `db:"occupancy_start_date" json:"occupancy_start_date"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Consistent reports whether the occupant fields agree with the status.
func (b *Bed) Consistent() bool {
	occupied := b.Status == BedOccupied
	return occupied == (b.OccupantPatientID != nil) && occupied == (b.OccupancyStartDate != nil)
}

func (b *Bed) occupy(patientID uuid.UUID, at time.Time) {
	pid := patientID
	start := at
	b.Status = BedOccupied
	b.OccupantPatientID = &pid
	b.OccupancyStartDate = &start
}

func (b *Bed) vacate(status BedStatus) {
	b.Status = status
	b.OccupantPatientID = nil
	b.OccupancyStartDate = nil
}

// RoomRef is the room of a BedDetail with its ward nested.
type RoomRef struct {
	Room
	Ward Ward `json:"ward"`
}

// BedDetail is a bed joined with its room and ward, the shape every bed
// mutation returns.
type BedDetail struct {
	Bed
	Room RoomRef `json:"room"`
}

// WardID returns the ward that owns the bed.
func (d *BedDetail) WardID() uuid.UUID { return d.Room.WardID }

// RoomWithBeds is a room with its beds nested.
type RoomWithBeds struct {
	Room
	Beds []Bed `json:"beds"`
}

// WardDetail is a ward with rooms and beds nested.
type WardDetail struct {
	Ward
	Rooms []RoomWithBeds `json:"rooms"`
}

// CountOccupied returns the number of OCCUPIED beds across the nested rooms.
func (w *WardDetail) CountOccupied() int {
	n := 0
	for _, r := range w.Rooms {
		for _, b := range r.Beds {
			if b.Status == BedOccupied {
				n++
			}
		}
	}
	return n
}

// Recount overwrites the cached OccupiedBeds with the live count from the
// nested beds, tolerating drift from out-of-band writes.
func (w *WardDetail) Recount() {
	w.OccupiedBeds = w.CountOccupied()
}

// StatusSummary tallies beds per status.
type StatusSummary struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Occupied    int `json:"occupied"`
	Maintenance int `json:"maintenance"`
	Cleaning    int `json:"cleaning"`
	Reserved    int `json:"reserved"`
}

// Summarize counts beds per status.
func Summarize(beds []BedDetail) StatusSummary {
	s := StatusSummary{Total: len(beds)}
	for _, b := range beds {
		switch b.Status {
		case BedAvailable:
			s.Available++
		case BedOccupied:
			s.Occupied++
		case BedMaintenance:
			s.Maintenance++
		case BedCleaning:
			s.Cleaning++
		case BedReserved:
			s.Reserved++
		}
	}
	return s
}

// BedFilter narrows GetBedStatus. Nil fields do not filter.
type BedFilter struct {
	WardID    *uuid.UUID
	PatientID *uuid.UUID
}

// BedStatusReport is the payload of GetBedStatus.
type BedStatusReport struct {
	Beds    []BedDetail   `json:"beds"`
	Summary StatusSummary `json:"summary"`
}

// WardPatch holds the fields UpdateWard may change. Topology and the
// occupancy counter are not patchable.
type WardPatch struct {
	WardName    *string `json:"ward_name"`
	Department  *string `json:"department"`
	Description *string `json:"description"`
}

func (p WardPatch) apply(w *Ward) {
	if p.WardName != nil {
		w.WardName = *p.WardName
	}
	if p.Department != nil {
		w.Department = *p.Department
	}
	if p.Description != nil {
		w.Description = p.Description
	}
}
