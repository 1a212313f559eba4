package entities

import "time"

// RejectReason explains why a ping was not committed. Rejects are ordinary
// results returned to the client, not errors.
type RejectReason string

const (
	RejectPaused    RejectReason = "paused"
	RejectThrottled RejectReason = "throttled"
	RejectInvalid   RejectReason = "invalid"
)

// PingInput is one position report as sent by the client. Pointer fields let
// validation tell "missing" apart from zero.
type PingInput struct {
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	AccuracyMeters *float64 `json:"accuracyMeters"`
	Source         Source   `json:"source"`
	RecordedAtMs   *float64 `json:"recordedAtMs"`
}

// Ping is a PingInput that passed validation.
type Ping struct {
	Lat            float64
	Lng            float64
	AccuracyMeters float64
	Source         Source
	RecordedAt     time.Time
}

// PingResult is the outcome of UpsertPing.
type PingResult struct {
	Accepted         bool         `json:"accepted"`
	Reason           RejectReason `json:"reason,omitempty"`
	NextPingAfterSec *int         `json:"nextPingAfterSec,omitempty"`
}

// AcceptedPing is the result for a committed ping.
func AcceptedPing() *PingResult {
	return &PingResult{Accepted: true}
}

// RejectedPing builds a reject result without a retry hint.
func RejectedPing(reason RejectReason) *PingResult {
	return &PingResult{Accepted: false, Reason: reason}
}

// ThrottledPing builds a throttled result telling the client how long to wait.
func ThrottledPing(waitSec int) *PingResult {
	return &PingResult{Accepted: false, Reason: RejectThrottled, NextPingAfterSec: &waitSec}
}
