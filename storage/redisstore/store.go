// Package redisstore keeps RSVP records in Redis, one hash per guest.
package redisstore

import (
	"context"
	"fmt"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/redis/go-redis/v9"
)

const (
	fieldStatus       = "status"
	fieldDietaryNotes = "dietary_notes"
	fieldSongRequest  = "song_request"
)

// Store implements rsvp.Store. Records never expire.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store keeping records under "<prefix>:<email>".
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rsvp"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Store) key(subject string) string {
	return s.prefix + ":" + subject
}

// GetRSVP returns rsvp.ErrNotFound when the hash does not exist.
func (s *Store) GetRSVP(ctx context.Context, subject string) (rsvp.Record, error) {
	values, err := s.redis.HGetAll(ctx, s.key(subject)).Result()
	if err != nil {
		return rsvp.Record{}, fmt.Errorf("redisstore: get: %w", err)
	}
	if len(values) == 0 {
		return rsvp.Record{}, rsvp.ErrNotFound
	}
	return rsvp.Record{
		Status:       rsvp.Status(values[fieldStatus]),
		DietaryNotes: values[fieldDietaryNotes],
		SongRequest:  values[fieldSongRequest],
	}, nil
}

// UpsertRSVP writes all three fields with one HSET, so readers never see a
// half-updated record.
func (s *Store) UpsertRSVP(ctx context.Context, subject string, record rsvp.Record) error {
	err := s.redis.HSet(ctx, s.key(subject),
		fieldStatus, string(record.Status),
		fieldDietaryNotes, record.DietaryNotes,
		fieldSongRequest, record.SongRequest,
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: upsert: %w", err)
	}
	return nil
}
