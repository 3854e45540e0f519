package internaldefs

import (
	rsvp "github.com/cactusmakesperfect/rsvp"
)

// CounterDef names one service counter for exporters.
type CounterDef struct {
	ID   rsvp.MetricID
	Name string
	Help string
}

// HistogramDef names one service histogram for exporters.
type HistogramDef struct {
	ID   rsvp.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: rsvp.MetricLoginRequest, Name: "rsvp_login_request_total", Help: "Accepted login requests."},
	{ID: rsvp.MetricLoginRequestFailure, Name: "rsvp_login_request_failure_total", Help: "Rejected or failed login requests."},
	{ID: rsvp.MetricLoginRateLimited, Name: "rsvp_login_rate_limited_total", Help: "Login requests and verifications denied by throttling."},
	{ID: rsvp.MetricVerifySuccess, Name: "rsvp_verify_success_total", Help: "Successful code verifications."},
	{ID: rsvp.MetricVerifyFailure, Name: "rsvp_verify_failure_total", Help: "Failed code verifications."},
	{ID: rsvp.MetricVerifyAttemptsExceeded, Name: "rsvp_verify_attempts_exceeded_total", Help: "Login challenges invalidated due to attempt cap."},
	{ID: rsvp.MetricCodeDelivered, Name: "rsvp_code_delivered_total", Help: "Login codes handed to the mailer."},
	{ID: rsvp.MetricCodeDeliveryFailure, Name: "rsvp_code_delivery_failure_total", Help: "Login codes the mailer failed to send."},
	{ID: rsvp.MetricRSVPRead, Name: "rsvp_read_total", Help: "RSVP reads."},
	{ID: rsvp.MetricRSVPSubmitted, Name: "rsvp_submitted_total", Help: "Stored RSVP submissions."},
	{ID: rsvp.MetricRSVPRejected, Name: "rsvp_rejected_total", Help: "RSVP submissions rejected by validation."},
	{ID: rsvp.MetricRSVPStoreFailure, Name: "rsvp_store_failure_total", Help: "RSVP store errors."},
	{ID: rsvp.MetricAuthenticateFailure, Name: "rsvp_authenticate_failure_total", Help: "Rejected bearer credentials."},
	{ID: rsvp.MetricRateLimitHit, Name: "rsvp_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: rsvp.MetricAuthenticateLatency, Name: "rsvp_authenticate_latency_seconds", Help: "Bearer credential check latency."},
}

// HistogramBounds are the upper bounds in seconds of the first seven
// buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const (
	AuditDroppedName = "rsvp_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
