package ward

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hospital/hms/pkg/pagination"
)

// Reads never take locks and never touch the cached counter. Ward
// aggregates recount occupied beds from the nested bed list.

// GetBedStatus lists beds matching filter with a per-status tally.
func (s *Service) GetBedStatus(ctx context.Context, filter BedFilter) (*BedStatusReport, error) {
	beds, err := s.beds.ListDetails(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list beds: %w", err)
	}
	if beds == nil {
		beds = []BedDetail{}
	}
	return &BedStatusReport{Beds: beds, Summary: Summarize(beds)}, nil
}

// GetWardWithOccupancy returns the ward with rooms and beds nested.
func (s *Service) GetWardWithOccupancy(ctx context.Context, id uuid.UUID) (*WardDetail, error) {
	w, err := s.wards.GetByID(ctx, id)
	if errors.Is(err, errNoRecord) {
		return nil, ErrWardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ward %s: %w", id, err)
	}

	details, err := s.assemble(ctx, []*Ward{w})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListWards returns one page of wards ordered by name plus the total count.
func (s *Service) ListWards(ctx context.Context, p pagination.Params) ([]WardDetail, int, error) {
	p = pagination.New(p.Page, p.Limit)
	wards, total, err := s.wards.List(ctx, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list wards: %w", err)
	}
	details, err := s.assemble(ctx, wards)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

// assemble nests rooms and beds under each ward in two queries and recounts
// occupancy. Output order follows wards.
func (s *Service) assemble(ctx context.Context, wards []*Ward) ([]WardDetail, error) {
	out := make([]WardDetail, 0, len(wards))
	if len(wards) == 0 {
		return out, nil
	}

	wardIDs := make([]uuid.UUID, len(wards))
	for i, w := range wards {
		wardIDs[i] = w.ID
	}
	rooms, err := s.rooms.ListByWards(ctx, wardIDs)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	roomIDs := make([]uuid.UUID, len(rooms))
	for i, r := range rooms {
		roomIDs[i] = r.ID
	}
	beds, err := s.beds.ListByRooms(ctx, roomIDs)
	if err != nil {
		return nil, fmt.Errorf("list beds: %w", err)
	}

	bedsByRoom := make(map[uuid.UUID][]Bed, len(rooms))
	for _, b := range beds {
		bedsByRoom[b.RoomID] = append(bedsByRoom[b.RoomID], b)
	}
	roomsByWard := make(map[uuid.UUID][]RoomWithBeds, len(wards))
	for _, r := range rooms {
		rb := bedsByRoom[r.ID]
		if rb == nil {
			rb = []Bed{}
		}
		roomsByWard[r.WardID] = append(roomsByWard[r.WardID], RoomWithBeds{Room: *r, Beds: rb})
	}

	for _, w := range wards {
		rs := roomsByWard[w.ID]
		if rs == nil {
			rs = []RoomWithBeds{}
		}
		d := WardDetail{Ward: *w, Rooms: rs}
		d.Recount()
		out = append(out, d)
	}
	return out, nil
}
