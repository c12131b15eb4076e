package ward

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hospital/hms/internal/platform/audit"
	"github.com/hospital/hms/internal/platform/auth"
	"github.com/hospital/hms/internal/platform/db"
	"github.com/hospital/hms/internal/platform/events"
	"github.com/hospital/hms/internal/platform/metrics"
)

const (
	entityWard = "Ward"
	entityBed  = "Bed"
)

var (
	provisionRoles = []string{auth.RoleAdmin}
	occupancyRoles = []string{auth.RoleAdmin, auth.RoleNurse}
)

// Service owns every write to wards, rooms and beds. Each mutation runs in
// one transaction; audit records and change events go out after commit.
type Service struct {
	tx       db.Transactor
	wards    WardRepository
	rooms    RoomRepository
	beds     BedRepository
	patients PatientLookup

	audit   audit.Sink
	events  events.Publisher
	metrics metrics.Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) { s.audit = sink }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the source of occupancy start dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	tx db.Transactor,
	wards WardRepository,
	rooms RoomRepository,
	beds BedRepository,
	patients PatientLookup,
	opts ...Option,
) *Service {
	s := &Service{
		tx:       tx,
		wards:    wards,
		rooms:    rooms,
		beds:     beds,
		patients: patients,
		audit:    audit.Nop,
		events:   events.Nop{},
		metrics:  metrics.Nop{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWardInput is the provisioning request.
type CreateWardInput struct {
	WardName    string  `json:"ward_name"`
	Department  string  `json:"department"`
	TotalBeds   int     `json:"total_beds"`
	Description *string `json:"description"`
}

// CreateBedInput adds a single bed to an existing room.
type CreateBedInput struct {
	RoomID    uuid.UUID
	BedNumber string
}

// CreateWard creates the ward with its derived rooms and beds atomically.
func (s *Service) CreateWard(ctx context.Context, actor auth.Actor, in CreateWardInput) (w *Ward, err error) {
	defer s.observe(ctx, "create_ward", time.Now(), &err)

	if !actor.HasAnyRole(provisionRoles...) {
		return nil, ErrNotPermitted
	}
	if strings.TrimSpace(in.WardName) == "" {
		return nil, ErrWardNameRequired
	}
	if strings.TrimSpace(in.Department) == "" {
		return nil, ErrDepartmentMissing
	}
	if in.TotalBeds > MaxTotalBeds {
		return nil, ErrTooManyBeds
	}

	w = &Ward{
		WardName:    in.WardName,
		Department:  in.Department,
		TotalBeds:   in.TotalBeds,
		Description: in.Description,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.wards.Create(ctx, w); err != nil {
			return fmt.Errorf("create ward: %w", err)
		}
		return s.provision(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, entityWard, w.ID, audit.ActionCreate, nil, w)
	s.publish(ctx, events.Event{
		Type:      events.TypeWardCreated,
		WardID:    w.ID.String(),
		TotalBeds: w.TotalBeds,
	})
	s.metrics.SetWardOccupancy(w.ID.String(), w.OccupiedBeds, w.TotalBeds)
	return w, nil
}

func (s *Service) provision(ctx context.Context, w *Ward) error {
	var beds []*Bed
	for _, plan := range PlanTopology(w.TotalBeds) {
		room := &Room{
			WardID:     w.ID,
			RoomNumber: plan.RoomNumber,
			TotalBeds:  plan.Beds,
			RoomType:   RoomGeneral,
			Status:     RoomAvailable,
		}
		if err := s.rooms.Create(ctx, room); err != nil {
			return fmt.Errorf("create room %s: %w", plan.RoomNumber, err)
		}
		for _, n := range bedNumbers(plan.Beds) {
			beds = append(beds, &Bed{RoomID: room.ID, BedNumber: n, Status: BedAvailable})
		}
	}
	if err := s.beds.CreateMany(ctx, beds); err != nil {
		return fmt.Errorf("create beds: %w", err)
	}
	return nil
}

// UpdateWard applies a partial update. Topology and the occupancy counter
// are left alone.
func (s *Service) UpdateWard(ctx context.Context, actor auth.Actor, id uuid.UUID, patch WardPatch) (w *Ward, err error) {
	defer s.observe(ctx, "update_ward", time.Now(), &err)

	if !actor.HasAnyRole(provisionRoles...) {
		return nil, ErrNotPermitted
	}
	if patch.WardName != nil && strings.TrimSpace(*patch.WardName) == "" {
		return nil, ErrWardNameRequired
	}
	if patch.Department != nil && strings.TrimSpace(*patch.Department) == "" {
		return nil, ErrDepartmentMissing
	}

	var before Ward
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.wards.LockByID(ctx, id)
		if errors.Is(err, errNoRecord) {
			return ErrWardNotFound
		}
		if err != nil {
			return fmt.Errorf("lock ward %s: %w", id, err)
		}
		before = *current
		patch.apply(current)
		if err := s.wards.Update(ctx, current); err != nil {
			if errors.Is(err, errNoRecord) {
				return ErrWardNotFound
			}
			return fmt.Errorf("update ward %s: %w", id, err)
		}
		w = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, entityWard, w.ID, audit.ActionUpdate, before, w)
	return w, nil
}

// CreateBed adds an AVAILABLE bed to a room of the given ward.
func (s *Service) CreateBed(ctx context.Context, actor auth.Actor, wardID uuid.UUID, in CreateBedInput) (b *Bed, err error) {
	defer s.observe(ctx, "create_bed", time.Now(), &err)

	if !actor.HasAnyRole(provisionRoles...) {
		return nil, ErrNotPermitted
	}
	if in.RoomID == uuid.Nil {
		return nil, ErrRoomIDRequired
	}
	if strings.TrimSpace(in.BedNumber) == "" {
		return nil, ErrBedNumberRequired
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		room, err := s.rooms.GetByID(ctx, in.RoomID)
		if errors.Is(err, errNoRecord) {
			return ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("get room %s: %w", in.RoomID, err)
		}
		if room.WardID != wardID {
			return ErrRoomNotFound
		}
		b = &Bed{RoomID: room.ID, BedNumber: in.BedNumber, Status: BedAvailable}
		if err := s.beds.Create(ctx, b); err != nil {
			return fmt.Errorf("create bed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, entityBed, b.ID, audit.ActionCreate, nil, b)
	s.publish(ctx, events.Event{
		Type:   events.TypeBedCreated,
		WardID: wardID.String(),
		BedID:  b.ID.String(),
		Status: string(b.Status),
	})
	return b, nil
}

// record hands the entry to the audit sink. Sink errors and panics are
// logged and dropped.
func (s *Service) record(ctx context.Context, actor auth.Actor, entityType string, id uuid.UUID, action string, prev, next any) {
	rec := audit.Record{
		ActorID:     actor.UserID,
		EntityType:  entityType,
		EntityID:    id.String(),
		Action:      action,
		Previous:    prev,
		New:         next,
		CallerIP:    actor.IP,
		CallerAgent: actor.UserAgent,
		RecordedAt:  s.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).
				Str("entity_type", entityType).Str("entity_id", rec.EntityID).
				Msg("audit sink panicked")
		}
	}()
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Warn().Err(err).
			Str("entity_type", entityType).
			Str("entity_id", rec.EntityID).
			Str("action", action).
			Msg("audit record failed")
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event", ev.Type).
			Str("ward_id", ev.WardID).
			Str("bed_id", ev.BedID).
			Msg("occupancy event not published")
	}
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err *error) {
	s.metrics.Observe(ctx, op, *err == nil, time.Since(start))
	if *err != nil && !IsCallerError(*err) {
		s.logger.Error().Err(*err).Str("op", op).Msg("occupancy operation failed")
	}
}
