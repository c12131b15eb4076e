package ward

import (
	"context"

	"github.com/google/uuid"
)

// Lookups by id return errNoRecord when nothing matches. Every method runs
// inside the transaction carried by ctx when there is one.

// WardRepository defines the persistence interface for wards.
type WardRepository interface {
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	// LockByID reads the ward and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	Update(ctx context.Context, w *Ward) error
	SetOccupiedBeds(ctx context.Context, id uuid.UUID, occupied int) error
	List(ctx context.Context, limit, offset int) ([]*Ward, int, error)
}

// RoomRepository defines the persistence interface for rooms.
type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)
	ListByWards(ctx context.Context, wardIDs []uuid.UUID) ([]*Room, error)
}

// BedRepository defines the persistence interface for beds.
type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	CreateMany(ctx context.Context, beds []*Bed) error
	// GetForUpdate reads the bed and holds a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	// UpdateOccupancy writes status, occupant and start date.
	UpdateOccupancy(ctx context.Context, b *Bed) error
	GetDetail(ctx context.Context, id uuid.UUID) (*BedDetail, error)
	ListDetails(ctx context.Context, filter BedFilter) ([]BedDetail, error)
	ListByRooms(ctx context.Context, roomIDs []uuid.UUID) ([]Bed, error)
	CountOccupiedInWard(ctx context.Context, wardID uuid.UUID) (int, error)
}

// PatientLookup resolves patient references. The occupancy core never owns
// patient records.
type PatientLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
