package domain

import "time"

// DetectedMeeting is a calendar event the detector judged to be a real
// meeting happening now (or about to).
type DetectedMeeting struct {
	Event              *CalendarEvent
	Confidence         float64
	DetectionTime      time.Time
	CountdownSeconds   int64
	AutoStartTriggered bool // flips false->true at most once
}

// DetectionConfig tunes the meeting detector. A single copy is shared
// under a read/write lock and may be swapped at runtime.
type DetectionConfig struct {
	DetectionWindowMinutes    int
	ConfidenceThreshold       float64
	AutoStartEnabled          bool
	NotificationEnabled       bool
	NotificationMinutesBefore int
}

// DefaultDetectionConfig returns the detector defaults.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		DetectionWindowMinutes:    10,
		ConfidenceThreshold:       0.2,
		AutoStartEnabled:          false,
		NotificationEnabled:       true,
		NotificationMinutesBefore: 5,
	}
}

// SyncStatus tracks the outcome of the latest sync attempt per account.
// It is created with defaults on first use and overwritten on each sync.
type SyncStatus struct {
	AccountID      int64
	LastSync       *time.Time // last successful sync
	EventsSynced   int
	SyncInProgress bool
	LastError      string
}
