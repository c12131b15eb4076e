package ward

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/hms/internal/platform/audit"
)

// -- In-memory store --

// memStore backs every repository mock. Transactions are serialised on txMu
// and roll back by restoring a snapshot of the maps.
type memStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	wards    map[uuid.UUID]Ward
	rooms    map[uuid.UUID]Room
	beds     map[uuid.UUID]Bed
	patients map[uuid.UUID]bool
	order    map[uuid.UUID]int
	seq      int

	// failOn makes the named repository call return errInjected.
	failOn string
}

var errInjected = errors.New("injected store failure")

func newMemStore() *memStore {
	return &memStore{
		wards:    make(map[uuid.UUID]Ward),
		rooms:    make(map[uuid.UUID]Room),
		beds:     make(map[uuid.UUID]Bed),
		patients: make(map[uuid.UUID]bool),
		order:    make(map[uuid.UUID]int),
	}
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (m *memStore) nextID() uuid.UUID {
	id := uuid.New()
	m.seq++
	m.order[id] = m.seq
	return id
}

func (m *memStore) addPatient() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = true
	return id
}

type storeSnapshot struct {
	wards map[uuid.UUID]Ward
	rooms map[uuid.UUID]Room
	beds  map[uuid.UUID]Bed
}

func (m *memStore) snapshot() storeSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := storeSnapshot{
		wards: make(map[uuid.UUID]Ward, len(m.wards)),
		rooms: make(map[uuid.UUID]Room, len(m.rooms)),
		beds:  make(map[uuid.UUID]Bed, len(m.beds)),
	}
	for k, v := range m.wards {
		s.wards[k] = v
	}
	for k, v := range m.rooms {
		s.rooms[k] = v
	}
	for k, v := range m.beds {
		s.beds[k] = v
	}
	return s
}

func (m *memStore) restore(s storeSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wards, m.rooms, m.beds = s.wards, s.rooms, s.beds
}

func (m *memStore) ward(id uuid.UUID) Ward {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wards[id]
}

func (m *memStore) bed(id uuid.UUID) Bed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beds[id]
}

// occupiedIn counts OCCUPIED beds in the ward straight from the maps.
func (m *memStore) occupiedIn(wardID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countOccupied(wardID)
}

func (m *memStore) countOccupied(wardID uuid.UUID) int {
	n := 0
	for _, b := range m.beds {
		if b.Status == BedOccupied && m.rooms[b.RoomID].WardID == wardID {
			n++
		}
	}
	return n
}

// bedsIn returns the ward's beds in creation order.
func (m *memStore) bedsIn(wardID uuid.UUID) []Bed {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bed
	for _, b := range m.beds {
		if m.rooms[b.RoomID].WardID == wardID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] < m.order[out[j].ID] })
	return out
}

// -- Transactor --

type txMarker struct{}

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// -- Ward Repository --

type memWardRepo struct{ s *memStore }

func (r *memWardRepo) Create(_ context.Context, w *Ward) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("wards.Create"); err != nil {
		return err
	}
	w.ID = r.s.nextID()
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	r.s.wards[w.ID] = *w
	return nil
}

func (r *memWardRepo) GetByID(_ context.Context, id uuid.UUID) (*Ward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wards[id]
	if !ok {
		return nil, errNoRecord
	}
	return &w, nil
}

func (r *memWardRepo) LockByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	if err := r.s.fail("wards.LockByID"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *memWardRepo) Update(_ context.Context, w *Ward) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.wards[w.ID]
	if !ok {
		return errNoRecord
	}
	cur.WardName, cur.Department, cur.Description = w.WardName, w.Department, w.Description
	cur.UpdatedAt = time.Now()
	r.s.wards[w.ID] = cur
	*w = cur
	return nil
}

func (r *memWardRepo) SetOccupiedBeds(_ context.Context, id uuid.UUID, occupied int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("wards.SetOccupiedBeds"); err != nil {
		return err
	}
	w := r.s.wards[id]
	w.OccupiedBeds = occupied
	r.s.wards[id] = w
	return nil
}

func (r *memWardRepo) List(_ context.Context, limit, offset int) ([]*Ward, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]Ward, 0, len(r.s.wards))
	for _, w := range r.s.wards {
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].WardName != all[j].WardName {
			return all[i].WardName < all[j].WardName
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	var page []*Ward
	for i := offset; i < len(all) && i < offset+limit; i++ {
		w := all[i]
		page = append(page, &w)
	}
	return page, len(all), nil
}

// -- Room Repository --

type memRoomRepo struct{ s *memStore }

func (r *memRoomRepo) Create(_ context.Context, room *Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("rooms.Create"); err != nil {
		return err
	}
	room.ID = r.s.nextID()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	r.s.rooms[room.ID] = *room
	return nil
}

func (r *memRoomRepo) GetByID(_ context.Context, id uuid.UUID) (*Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, errNoRecord
	}
	return &room, nil
}

func (r *memRoomRepo) ListByWards(_ context.Context, wardIDs []uuid.UUID) ([]*Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(wardIDs))
	for _, id := range wardIDs {
		want[id] = true
	}
	var out []*Room
	for _, room := range r.s.rooms {
		if want[room.WardID] {
			room := room
			out = append(out, &room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
	return out, nil
}

// -- Bed Repository --

type memBedRepo struct{ s *memStore }

func (r *memBedRepo) Create(_ context.Context, b *Bed) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("beds.Create"); err != nil {
		return err
	}
	r.insert(b)
	return nil
}

func (r *memBedRepo) insert(b *Bed) {
	b.ID = r.s.nextID()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	r.s.beds[b.ID] = *b
}

func (r *memBedRepo) CreateMany(_ context.Context, beds []*Bed) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range beds {
		r.insert(b)
	}
	// Fails after the inserts so rollback has something to undo.
	return r.s.fail("beds.CreateMany")
}

func (r *memBedRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*Bed, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.beds[id]
	if !ok {
		return nil, errNoRecord
	}
	return &b, nil
}

func (r *memBedRepo) UpdateOccupancy(_ context.Context, b *Bed) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("beds.UpdateOccupancy"); err != nil {
		return err
	}
	cur, ok := r.s.beds[b.ID]
	if !ok {
		return errNoRecord
	}
	cur.Status, cur.OccupantPatientID, cur.OccupancyStartDate = b.Status, b.OccupantPatientID, b.OccupancyStartDate
	cur.UpdatedAt = time.Now()
	r.s.beds[b.ID] = cur
	b.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *memBedRepo) detail(b Bed) BedDetail {
	room := r.s.rooms[b.RoomID]
	return BedDetail{Bed: b, Room: RoomRef{Room: room, Ward: r.s.wards[room.WardID]}}
}

func (r *memBedRepo) GetDetail(_ context.Context, id uuid.UUID) (*BedDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.beds[id]
	if !ok {
		return nil, errNoRecord
	}
	d := r.detail(b)
	return &d, nil
}

func (r *memBedRepo) ListDetails(_ context.Context, f BedFilter) ([]BedDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []BedDetail
	for _, b := range r.s.beds {
		d := r.detail(b)
		if f.WardID != nil && d.WardID() != *f.WardID {
			continue
		}
		if f.PatientID != nil && (b.OccupantPatientID == nil || *b.OccupantPatientID != *f.PatientID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
	return out, nil
}

func (r *memBedRepo) ListByRooms(_ context.Context, roomIDs []uuid.UUID) ([]Bed, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(roomIDs))
	for _, id := range roomIDs {
		want[id] = true
	}
	var out []Bed
	for _, b := range r.s.beds {
		if want[b.RoomID] {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
	return out, nil
}

func (r *memBedRepo) CountOccupiedInWard(_ context.Context, wardID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.countOccupied(wardID), nil
}

// -- Patient Lookup --

type memPatients struct{ s *memStore }

func (p *memPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.fail("patients.Exists"); err != nil {
		return false, err
	}
	return p.s.patients[id], nil
}

// -- Audit and metrics capture --

type captureSink struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
	panics  bool
}

func (c *captureSink) Record(_ context.Context, rec audit.Record) error {
	if c.panics {
		panic("sink exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *captureSink) all() []audit.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Record(nil), c.records...)
}

type observation struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu   sync.Mutex
	ops  []observation
	ward map[string]int
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, observation{op, success})
}

func (c *captureMetrics) SetWardOccupancy(wardID string, occupied, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ward == nil {
		c.ward = make(map[string]int)
	}
	c.ward[wardID] = occupied
}
