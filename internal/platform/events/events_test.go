package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher_Publish(t *testing.T) {
	fr := &fakeRedis{}
	p := newRedisPublisher(fr, "")

	err := p.Publish(context.Background(), Event{
		Type:         TypeBedAssigned,
		WardID:       "w-1",
		BedID:        "b-1",
		PatientID:    "p-1",
		Status:       "OCCUPIED",
		OccupiedBeds: 3,
		TotalBeds:    10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fr.channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", fr.channel, DefaultChannel)
	}

	var got Event
	if err := json.Unmarshal(fr.message, &got); err != nil {
		t.Fatalf("message is not JSON: %v", err)
	}
	if got.Type != TypeBedAssigned || got.OccupiedBeds != 3 || got.BedID != "b-1" {
		t.Errorf("unexpected event %+v", got)
	}
	if got.At.IsZero() {
		t.Error("At should default to now")
	}
}

func TestRedisPublisher_KeepsTimestamp(t *testing.T) {
	fr := &fakeRedis{}
	p := newRedisPublisher(fr, "ward-feed")
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if err := p.Publish(context.Background(), Event{Type: TypeWardCreated, At: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fr.channel != "ward-feed" {
		t.Errorf("channel = %q", fr.channel)
	}
	var got Event
	json.Unmarshal(fr.message, &got)
	if !got.At.Equal(at) {
		t.Errorf("At = %v, want %v", got.At, at)
	}
}

func TestRedisPublisher_Error(t *testing.T) {
	fr := &fakeRedis{err: errors.New("connection refused")}
	p := newRedisPublisher(fr, "")

	err := p.Publish(context.Background(), Event{Type: TypeBedUnassigned})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, fr.err) {
		t.Errorf("expected wrapped redis error, got %v", err)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url"); err == nil {
		t.Error("expected parse error")
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("Nop returned %v", err)
	}
}
