package rsvp

import (
	"context"
	"errors"

	"github.com/cactusmakesperfect/rsvp/internal/flows"
	"go.uber.org/zap"
)

// GetRSVP returns the record for subject, or DefaultRecord when the guest
// has not answered yet.
func (s *Service) GetRSVP(ctx context.Context, subject string) (Record, error) {
	if s == nil || !s.flows.Initialized() {
		return Record{}, ErrEngineNotReady
	}
	rec, err := s.flows.GetRSVP(ctx, subject)
	if err != nil {
		return Record{}, err
	}
	return fromFlowRecord(rec), nil
}

// SubmitRSVP validates and stores record for subject, replacing any previous
// answer, and returns what was stored.
func (s *Service) SubmitRSVP(ctx context.Context, subject string, record Record) (Record, error) {
	if s == nil || !s.flows.Initialized() {
		return Record{}, ErrEngineNotReady
	}
	rec, err := s.flows.SubmitRSVP(ctx, subject, toFlowRecord(record))
	if err != nil {
		return Record{}, err
	}
	return fromFlowRecord(rec), nil
}

func (s *Service) getRecord(ctx context.Context, subject string) (flows.RSVPRecord, error) {
	rec, err := s.store.GetRSVP(ctx, subject)
	if err != nil {
		return flows.RSVPRecord{}, err
	}
	return toFlowRecord(rec), nil
}

func (s *Service) upsertRecord(ctx context.Context, subject string, rec flows.RSVPRecord) error {
	return s.store.UpsertRSVP(ctx, subject, fromFlowRecord(rec))
}

func (s *Service) mapStoreError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("rsvp store failure", zap.Error(err))
	return ErrStoreUnavailable
}

func toFlowRecord(r Record) flows.RSVPRecord {
	return flows.RSVPRecord{
		Status:       string(r.Status),
		DietaryNotes: r.DietaryNotes,
		SongRequest:  r.SongRequest,
	}
}

func fromFlowRecord(r flows.RSVPRecord) Record {
	return Record{
		Status:       Status(r.Status),
		DietaryNotes: r.DietaryNotes,
		SongRequest:  r.SongRequest,
	}
}
