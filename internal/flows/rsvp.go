package flows

import (
	"context"
	"errors"
	"unicode/utf8"
)

// RSVPRecord is the flow-local RSVP shape.
type RSVPRecord struct {
	Status       string
	DietaryNotes string
	SongRequest  string
}

// RSVPMetrics holds the metric ids the RSVP flows increment.
type RSVPMetrics struct {
	RSVPRead         int
	RSVPSubmitted    int
	RSVPRejected     int
	RSVPStoreFailure int
}

// RSVPEvents names the audit events the RSVP flows emit.
type RSVPEvents struct {
	RSVPSubmitted string
}

// RSVPErrors are the errors the RSVP flows return.
type RSVPErrors struct {
	EngineNotReady error
	Unauthorized   error
	Validation     error
	NotFound       error
	Unavailable    error
}

// RSVPDeps carries everything RunGetRSVP and RunSubmitRSVP need.
type RSVPDeps struct {
	DefaultStatus string
	MaxNoteLength int

	ValidStatus func(string) bool

	GetRecord     func(context.Context, string) (RSVPRecord, error)
	UpsertRecord  func(context.Context, string, RSVPRecord) error
	MapStoreError func(error) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics RSVPMetrics
	Events  RSVPEvents
	Errors  RSVPErrors
}

// RunGetRSVP returns the stored record for subject, or the default pending record when
// none exists.
func RunGetRSVP(ctx context.Context, subject string, deps RSVPDeps) (RSVPRecord, error) {
	normalizeRSVPDeps(&deps)

	if deps.GetRecord == nil {
		return RSVPRecord{}, deps.Errors.EngineNotReady
	}
	if subject == "" {
		return RSVPRecord{}, deps.Errors.Unauthorized
	}

	record, err := deps.GetRecord(ctx, subject)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.MetricInc(deps.Metrics.RSVPRead)
			return RSVPRecord{Status: deps.DefaultStatus}, nil
		}
		deps.MetricInc(deps.Metrics.RSVPStoreFailure)
		return RSVPRecord{}, deps.MapStoreError(err)
	}

	deps.MetricInc(deps.Metrics.RSVPRead)
	return record, nil
}

// RunSubmitRSVP validates and upserts the record for subject and returns what
// was stored, which is always the input unchanged.
func RunSubmitRSVP(ctx context.Context, subject string, in RSVPRecord, deps RSVPDeps) (RSVPRecord, error) {
	normalizeRSVPDeps(&deps)

	if deps.UpsertRecord == nil {
		return RSVPRecord{}, deps.Errors.EngineNotReady
	}
	if subject == "" {
		return RSVPRecord{}, deps.Errors.Unauthorized
	}

	if !deps.ValidStatus(in.Status) {
		deps.MetricInc(deps.Metrics.RSVPRejected)
		deps.EmitAudit(ctx, deps.Events.RSVPSubmitted, false, subject, deps.Errors.Validation, func() map[string]string {
			return map[string]string{
				"reason": "invalid_status",
			}
		})
		return RSVPRecord{}, deps.Errors.Validation
	}

	// Free text is stored as typed; escaping is the renderer's job.
	record := in
	if utf8.RuneCountInString(record.DietaryNotes) > deps.MaxNoteLength ||
		utf8.RuneCountInString(record.SongRequest) > deps.MaxNoteLength {
		deps.MetricInc(deps.Metrics.RSVPRejected)
		deps.EmitAudit(ctx, deps.Events.RSVPSubmitted, false, subject, deps.Errors.Validation, func() map[string]string {
			return map[string]string{
				"reason": "note_too_long",
			}
		})
		return RSVPRecord{}, deps.Errors.Validation
	}

	if err := deps.UpsertRecord(ctx, subject, record); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.RSVPStoreFailure)
		deps.EmitAudit(ctx, deps.Events.RSVPSubmitted, false, subject, mapped, nil)
		return RSVPRecord{}, mapped
	}

	deps.MetricInc(deps.Metrics.RSVPSubmitted)
	deps.EmitAudit(ctx, deps.Events.RSVPSubmitted, true, subject, nil, func() map[string]string {
		return map[string]string{
			"status": record.Status,
		}
	})
	return record, nil
}

func normalizeRSVPDeps(deps *RSVPDeps) {
	if deps.DefaultStatus == "" {
		deps.DefaultStatus = "pending"
	}
	if deps.MaxNoteLength <= 0 {
		deps.MaxNoteLength = 500
	}
	if deps.ValidStatus == nil {
		deps.ValidStatus = func(s string) bool {
			switch s {
			case "pending", "accepted", "declined":
				return true
			}
			return false
		}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(error) error { return deps.Errors.Unavailable }
	}
}
