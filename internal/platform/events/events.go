// Package events publishes occupancy change notifications for live ward
// dashboards. Publishing is best effort and never part of a transaction.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "hms:occupancy"

const (
	TypeWardCreated      = "ward.created"
	TypeBedCreated       = "bed.created"
	TypeBedAssigned      = "bed.assigned"
	TypeBedUnassigned    = "bed.unassigned"
	TypeBedStatusChanged = "bed.status_changed"
)

// Event is the message body published on the occupancy channel.
type Event struct {
	Type         string    `json:"type"`
	WardID       string    `json:"ward_id"`
	BedID        string    `json:"bed_id,omitempty"`
	PatientID    string    `json:"patient_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	OccupiedBeds int       `json:"occupied_beds"`
	TotalBeds    int       `json:"total_beds"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// redisClient is the subset of *redis.Client the publisher needs.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON-encoded events with PUBLISH.
type RedisPublisher struct {
	client  redisClient
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return newRedisPublisher(client, channel)
}

func newRedisPublisher(client redisClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", ev.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
