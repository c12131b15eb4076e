package ward

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospital/hms/internal/platform/db"
)

// numberOrder sorts a text number column numerically for the digit-only
// numbers provisioning generates: "2" before "10".
func numberOrder(col string) string {
	return "length(" + col + "), " + col
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errNoRecord
	}
	return err
}

// -- Ward Repository --

type wardRepoPG struct {
	pool *pgxpool.Pool
}

func NewWardRepo(pool *pgxpool.Pool) WardRepository {
	return &wardRepoPG{pool: pool}
}

func (r *wardRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const wardColumns = `id, ward_name, department, total_beds, occupied_beds, description, created_at, updated_at`

func (r *wardRepoPG) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ward (id, ward_name, department, total_beds, occupied_beds, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		w.ID, w.WardName, w.Department, w.TotalBeds, w.OccupiedBeds, w.Description,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *wardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardColumns+` FROM ward WHERE id = $1`, id))
}

func (r *wardRepoPG) LockByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardColumns+` FROM ward WHERE id = $1 FOR UPDATE`, id))
}

func (r *wardRepoPG) Update(ctx context.Context, w *Ward) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE ward SET ward_name = $2, department = $3, description = $4, updated_at = NOW()
		WHERE id = $1`,
		w.ID, w.WardName, w.Department, w.Description,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRecord
	}
	return nil
}

func (r *wardRepoPG) SetOccupiedBeds(ctx context.Context, id uuid.UUID, occupied int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE ward SET occupied_beds = $2, updated_at = NOW() WHERE id = $1`, id, occupied)
	return err
}

func (r *wardRepoPG) List(ctx context.Context, limit, offset int) ([]*Ward, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ward`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+wardColumns+` FROM ward ORDER BY ward_name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, 0, err
		}
		wards = append(wards, w)
	}
	return wards, total, rows.Err()
}

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(&w.ID, &w.WardName, &w.Department, &w.TotalBeds, &w.OccupiedBeds,
		&w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// -- Room Repository --

type roomRepoPG struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) RoomRepository {
	return &roomRepoPG{pool: pool}
}

func (r *roomRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const roomColumns = `id, ward_id, room_number, total_beds, room_type, status, created_at, updated_at`

func (r *roomRepoPG) Create(ctx context.Context, room *Room) error {
	room.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO room (id, ward_id, room_number, total_beds, room_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		room.ID, room.WardID, room.RoomNumber, room.TotalBeds, string(room.RoomType), string(room.Status),
	).Scan(&room.CreatedAt, &room.UpdatedAt)
}

func (r *roomRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomColumns+` FROM room WHERE id = $1`, id))
}

func (r *roomRepoPG) ListByWards(ctx context.Context, wardIDs []uuid.UUID) ([]*Room, error) {
	if len(wardIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+roomColumns+` FROM room
		WHERE ward_id = ANY($1)
		ORDER BY ward_id, `+numberOrder("room_number")+`, id`, wardIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func scanRoom(row pgx.Row) (*Room, error) {
	var room Room
	var roomType, status string
	err := row.Scan(&room.ID, &room.WardID, &room.RoomNumber, &room.TotalBeds,
		&roomType, &status, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	room.RoomType = RoomType(roomType)
	room.Status = RoomStatus(status)
	return &room, nil
}

// -- Bed Repository --

type bedRepoPG struct {
	pool *pgxpool.Pool
}

func NewBedRepo(pool *pgxpool.Pool) BedRepository {
	return &bedRepoPG{pool: pool}
}

func (r *bedRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const bedColumns = `id, room_id, bed_number, status, occupant_patient_id, occupancy_start_date, created_at, updated_at`

const bedDetailSelect = `
	SELECT b.id, b.room_id, b.bed_number, b.status, b.occupant_patient_id, b.occupancy_start_date,
		b.created_at, b.updated_at,
		r.id, r.ward_id, r.room_number, r.total_beds, r.room_type, r.status, r.created_at, r.updated_at,
		w.id, w.ward_name, w.department, w.total_beds, w.occupied_beds, w.description,
		w.created_at, w.updated_at
	FROM bed b
	JOIN room r ON r.id = b.room_id
	JOIN ward w ON w.id = r.ward_id`

const insertBed = `
	INSERT INTO bed (id, room_id, bed_number, status, occupant_patient_id, occupancy_start_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at, updated_at`

func (r *bedRepoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, insertBed,
		b.ID, b.RoomID, b.BedNumber, string(b.Status), b.OccupantPatientID, b.OccupancyStartDate,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// CreateMany inserts beds in one round trip. Provisioning a large ward is a
// single batch inside the provisioning transaction.
func (r *bedRepoPG) CreateMany(ctx context.Context, beds []*Bed) error {
	if len(beds) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range beds {
		b.ID = uuid.New()
		batch.Queue(insertBed,
			b.ID, b.RoomID, b.BedNumber, string(b.Status), b.OccupantPatientID, b.OccupancyStartDate)
	}

	results := r.conn(ctx).SendBatch(ctx, batch)
	for _, b := range beds {
		if err := results.QueryRow().Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
			results.Close()
			return fmt.Errorf("insert bed %s in room %s: %w", b.BedNumber, b.RoomID, err)
		}
	}
	return results.Close()
}

func (r *bedRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedColumns+` FROM bed WHERE id = $1 FOR UPDATE`, id))
}

func (r *bedRepoPG) UpdateOccupancy(ctx context.Context, b *Bed) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE bed SET status = $2, occupant_patient_id = $3, occupancy_start_date = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, string(b.Status), b.OccupantPatientID, b.OccupancyStartDate,
	).Scan(&b.UpdatedAt)
	return notFound(err)
}

func (r *bedRepoPG) GetDetail(ctx context.Context, id uuid.UUID) (*BedDetail, error) {
	return scanBedDetail(r.conn(ctx).QueryRow(ctx, bedDetailSelect+` WHERE b.id = $1`, id))
}

func (r *bedRepoPG) ListDetails(ctx context.Context, filter BedFilter) ([]BedDetail, error) {
	query := bedDetailSelect + ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if filter.WardID != nil {
		query += fmt.Sprintf(` AND r.ward_id = $%d`, idx)
		args = append(args, *filter.WardID)
		idx++
	}
	if filter.PatientID != nil {
		query += fmt.Sprintf(` AND b.occupant_patient_id = $%d`, idx)
		args = append(args, *filter.PatientID)
		idx++
	}
	query += ` ORDER BY w.ward_name, w.id, ` + numberOrder("r.room_number") + `, ` + numberOrder("b.bed_number") + `, b.id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []BedDetail
	for rows.Next() {
		d, err := scanBedDetail(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, *d)
	}
	return beds, rows.Err()
}

func (r *bedRepoPG) ListByRooms(ctx context.Context, roomIDs []uuid.UUID) ([]Bed, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bedColumns+` FROM bed
		WHERE room_id = ANY($1)
		ORDER BY room_id, `+numberOrder("bed_number")+`, id`, roomIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, *b)
	}
	return beds, rows.Err()
}

func (r *bedRepoPG) CountOccupiedInWard(ctx context.Context, wardID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM bed b
		JOIN room r ON r.id = b.room_id
		WHERE r.ward_id = $1 AND b.status = $2`, wardID, string(BedOccupied)).Scan(&n)
	return n, err
}

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	var status string
	err := row.Scan(&b.ID, &b.RoomID, &b.BedNumber, &status, &b.OccupantPatientID,
		&b.OccupancyStartDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	b.Status = BedStatus(status)
	return &b, nil
}

func scanBedDetail(row pgx.Row) (*BedDetail, error) {
	var d BedDetail
	var bedStatus, roomType, roomStatus string
	err := row.Scan(
		&d.ID, &d.RoomID, &d.BedNumber, &bedStatus, &d.OccupantPatientID, &d.OccupancyStartDate,
		&d.CreatedAt, &d.UpdatedAt,
		&d.Room.ID, &d.Room.WardID, &d.Room.RoomNumber, &d.Room.TotalBeds, &roomType, &roomStatus,
		&d.Room.CreatedAt, &d.Room.UpdatedAt,
		&d.Room.Ward.ID, &d.Room.Ward.WardName, &d.Room.Ward.Department, &d.Room.Ward.TotalBeds,
		&d.Room.Ward.OccupiedBeds, &d.Room.Ward.Description, &d.Room.Ward.CreatedAt, &d.Room.Ward.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	d.Status = BedStatus(bedStatus)
	d.Room.RoomType = RoomType(roomType)
	d.Room.Status = RoomStatus(roomStatus)
	return &d, nil
}

// -- Patient Lookup --

type patientLookupPG struct {
	pool *pgxpool.Pool
}

func NewPatientLookup(pool *pgxpool.Pool) PatientLookup {
	return &patientLookupPG{pool: pool}
}

func (p *patientLookupPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
