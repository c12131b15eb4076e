// Package audit records who changed what in the occupancy store. Sinks are
// fire-and-forget from the caller's point of view: a failing sink never
// fails the operation that produced the record.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hospital/hms/internal/platform/db"
)

const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionAssign   = "ASSIGN"
	ActionUnassign = "UNASSIGN"
)

// Record is one audit entry. Snapshots are marshalled to JSON as they are.
type Record struct {
	ActorID     string    `json:"actor_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Action      string    `json:"action"`
	Previous    any       `json:"previous_snapshot,omitempty"`
	New         any       `json:"new_snapshot,omitempty"`
	CallerIP    string    `json:"caller_ip"`
	CallerAgent string    `json:"caller_agent"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Sink persists audit records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Record(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Nop discards every record.
var Nop Sink = SinkFunc(func(context.Context, Record) error { return nil })

// Tee writes to every sink and joins their errors.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, rec Record) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Record(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// LogSink writes records as structured zerolog events.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, rec Record) error {
	s.logger.Info().
		Str("type", "occupancy_audit").
		Str("actor_id", rec.ActorID).
		Str("entity_type", rec.EntityType).
		Str("entity_id", rec.EntityID).
		Str("action", rec.Action).
		Str("caller_ip", rec.CallerIP).
		Time("recorded_at", rec.RecordedAt).
		Msg("audit")
	return nil
}

// PGSink writes records to the audit_log table.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Record(ctx context.Context, rec Record) error {
	prev, err := snapshot(rec.Previous)
	if err != nil {
		return fmt.Errorf("audit: marshal previous snapshot: %w", err)
	}
	next, err := snapshot(rec.New)
	if err != nil {
		return fmt.Errorf("audit: marshal new snapshot: %w", err)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	_, err = db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO audit_log (
			id, actor_id, entity_type, entity_id, action,
			previous_snapshot, new_snapshot, caller_ip, caller_agent, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), rec.ActorID, rec.EntityType, rec.EntityID, rec.Action,
		prev, next, rec.CallerIP, rec.CallerAgent, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// snapshot returns nil for a missing snapshot so the column stays NULL.
func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
