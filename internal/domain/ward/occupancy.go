package ward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/hms/internal/platform/audit"
	"github.com/hospital/hms/internal/platform/auth"
	"github.com/hospital/hms/internal/platform/events"
)

// Lock order inside every bed mutation: bed row, then ward row. Ward updates
// take only the ward row, so the two never wait on each other in reverse.

// AssignBed puts patientID into an AVAILABLE bed.
func (s *Service) AssignBed(ctx context.Context, actor auth.Actor, bedID, patientID uuid.UUID) (detail *BedDetail, err error) {
	defer s.observe(ctx, "assign_bed", time.Now(), &err)

	if !actor.HasAnyRole(occupancyRoles...) {
		return nil, ErrNotPermitted
	}
	if patientID == uuid.Nil {
		return nil, ErrPatientIDRequired
	}

	var before Bed
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		bed, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.Status != BedAvailable {
			return ErrBedNotAvailable
		}
		ok, err := s.patients.Exists(ctx, patientID)
		if err != nil {
			return fmt.Errorf("look up patient %s: %w", patientID, err)
		}
		if !ok {
			return ErrPatientNotFound
		}

		before = *bed
		bed.occupy(patientID, s.now())
		detail, err = s.writeBed(ctx, bed)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterBedChange(ctx, actor, audit.ActionAssign, events.TypeBedAssigned, &before, detail)
	return detail, nil
}

// UnassignBed releases an OCCUPIED bed back to AVAILABLE.
func (s *Service) UnassignBed(ctx context.Context, actor auth.Actor, bedID uuid.UUID) (detail *BedDetail, err error) {
	defer s.observe(ctx, "unassign_bed", time.Now(), &err)

	if !actor.HasAnyRole(occupancyRoles...) {
		return nil, ErrNotPermitted
	}

	var before Bed
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		bed, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}
		if bed.Status != BedOccupied {
			return ErrBedNotAssigned
		}

		before = *bed
		bed.vacate(BedAvailable)
		detail, err = s.writeBed(ctx, bed)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterBedChange(ctx, actor, audit.ActionUnassign, events.TypeBedUnassigned, &before, detail)
	return detail, nil
}

// SetBedStatus is the administrative override. It accepts any transition,
// including OCCUPIED to OCCUPIED.
func (s *Service) SetBedStatus(ctx context.Context, actor auth.Actor, bedID uuid.UUID, status BedStatus, occupant *uuid.UUID) (detail *BedDetail, err error) {
	defer s.observe(ctx, "set_bed_status", time.Now(), &err)

	if !actor.HasAnyRole(occupancyRoles...) {
		return nil, ErrNotPermitted
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if occupant != nil && *occupant == uuid.Nil {
		return nil, ErrInvalidPatientID
	}

	var before Bed
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		bed, err := s.lockBed(ctx, bedID)
		if err != nil {
			return err
		}

		before = *bed
		if err := applyStatus(bed, status, occupant, s.now()); err != nil {
			return err
		}
		detail, err = s.writeBed(ctx, bed)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterBedChange(ctx, actor, audit.ActionUpdate, events.TypeBedStatusChanged, &before, detail)
	return detail, nil
}

// applyStatus moves b to status. Any status other than OCCUPIED clears the
// occupant. OCCUPIED takes the supplied occupant; without one the bed must
// already be OCCUPIED and keeps its occupant. Re-supplying the current
// occupant keeps the original start date.
func applyStatus(b *Bed, status BedStatus, occupant *uuid.UUID, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if status != BedOccupied {
		b.vacate(status)
		return nil
	}

	if occupant == nil {
		if b.Status == BedOccupied && b.OccupantPatientID != nil {
			return nil
		}
		return ErrOccupantRequired
	}
	if b.Status == BedOccupied && b.OccupantPatientID != nil && *b.OccupantPatientID == *occupant {
		return nil
	}
	b.occupy(*occupant, now)
	return nil
}

func (s *Service) lockBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	bed, err := s.beds.GetForUpdate(ctx, id)
	if errors.Is(err, errNoRecord) {
		return nil, ErrBedNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock bed %s: %w", id, err)
	}
	return bed, nil
}

// writeBed persists the bed, refreshes its ward counter and reads back the
// joined detail, all inside the caller's transaction.
func (s *Service) writeBed(ctx context.Context, bed *Bed) (*BedDetail, error) {
	if err := s.beds.UpdateOccupancy(ctx, bed); err != nil {
		if errors.Is(err, errNoRecord) {
			return nil, ErrBedNotFound
		}
		return nil, fmt.Errorf("update bed %s: %w", bed.ID, err)
	}

	room, err := s.rooms.GetByID(ctx, bed.RoomID)
	if err != nil {
		return nil, fmt.Errorf("get room %s of bed %s: %w", bed.RoomID, bed.ID, err)
	}
	if _, err := s.recomputeWardOccupancy(ctx, room.WardID); err != nil {
		return nil, err
	}

	detail, err := s.beds.GetDetail(ctx, bed.ID)
	if err != nil {
		return nil, fmt.Errorf("read bed %s: %w", bed.ID, err)
	}
	return detail, nil
}

// recomputeWardOccupancy locks the ward row, counts its OCCUPIED beds and
// stores the count. Holding the ward lock makes the count see every
// mutation on the ward committed before it.
func (s *Service) recomputeWardOccupancy(ctx context.Context, wardID uuid.UUID) (*Ward, error) {
	w, err := s.wards.LockByID(ctx, wardID)
	if errors.Is(err, errNoRecord) {
		return nil, ErrWardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock ward %s: %w", wardID, err)
	}

	n, err := s.beds.CountOccupiedInWard(ctx, wardID)
	if err != nil {
		return nil, fmt.Errorf("count occupied beds in ward %s: %w", wardID, err)
	}
	if err := s.wards.SetOccupiedBeds(ctx, wardID, n); err != nil {
		return nil, fmt.Errorf("set occupied beds of ward %s: %w", wardID, err)
	}
	w.OccupiedBeds = n
	return w, nil
}

func (s *Service) afterBedChange(ctx context.Context, actor auth.Actor, action, eventType string, before *Bed, after *BedDetail) {
	s.record(ctx, actor, entityBed, after.ID, action, before, after)

	ward := after.Room.Ward
	ev := events.Event{
		Type:         eventType,
		WardID:       ward.ID.String(),
		BedID:        after.ID.String(),
		Status:       string(after.Status),
		OccupiedBeds: ward.OccupiedBeds,
		TotalBeds:    ward.TotalBeds,
	}
	switch {
	case after.OccupantPatientID != nil:
		ev.PatientID = after.OccupantPatientID.String()
	case before.OccupantPatientID != nil:
		ev.PatientID = before.OccupantPatientID.String()
	}
	s.publish(ctx, ev)
	s.metrics.SetWardOccupancy(ward.ID.String(), ward.OccupiedBeds, ward.TotalBeds)
}
