package models

import (
	"time"
)

// TracePoint is a single point of a scan trace.
type TracePoint struct {
	FrequencyHz float64 `json:"frequency_hz" doc:"Frequency in Hz"`
	PowerDBm    float64 `json:"power_dbm" doc:"Power in dBm"`
}

// Scan session lifecycle states.
const (
	SessionPending   = "pending"
	SessionRunning   = "running"
	SessionPaused    = "paused"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// ScanSession represents one sweep of the instrument over a frequency range
// (for internal use).
type ScanSession struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	StartFreqMHz float64    `json:"start_freq_mhz"`
	StopFreqMHz  float64    `json:"stop_freq_mhz"`
	RBWHz        float64    `json:"rbw_hz"`
	OffsetHz     float64    `json:"offset_hz"`
	HoldCount    int        `json:"hold_count"`
	ResultFile   *string    `json:"result_file,omitempty"`
	ArchiveKey   *string    `json:"archive_key,omitempty"`
	ErrorMsg     *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
