package model

import "time"

// SweepStats is the running tally surfaced to the control surface during a
// sweep and persisted with the sweep record when it finishes.
type SweepStats struct {
	PagesScanned     int `json:"pages_scanned"`
	CardsSeen        int `json:"cards_seen"`
	Extracted        int `json:"extracted"`
	ExtractionFailed int `json:"extraction_failed"`
	Rejected         int `json:"rejected"`
	Duplicates       int `json:"duplicates"`
	Emitted          int `json:"emitted"`
	SinkErrors       int `json:"sink_errors"`
	QuotaRemaining   int `json:"quota_remaining"`
}

// Sweep records one full pass over the configured page range.
type Sweep struct {
	ID         string     `json:"id"`
	SessionID  int64      `json:"session_id"`
	Stats      SweepStats `json:"stats"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
