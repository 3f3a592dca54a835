package domain

import (
	"strings"
	"time"
)

// CalendarAccount is a configured connection to a calendar provider.
type CalendarAccount struct {
	ID        int64
	Provider  string // e.g. "caldav", "google"
	Email     string
	ServerURL string
	Username  string
	Password  string // app-specific password or access token
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalendarEvent is a locally cached event pulled from a provider.
type CalendarEvent struct {
	ID              int64
	AccountID       int64
	ExternalEventID string // provider-assigned UID
	Title           string
	Description     string
	Location        string
	StartTime       time.Time
	EndTime         time.Time
	AllDay          bool
	Participants    []string
	MeetingURL      string
	SyncedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TimeRange bounds a provider event query.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// MinutesUntilStart returns signed minutes between now and the event start.
// Negative once the meeting has started.
func (e *CalendarEvent) MinutesUntilStart(now time.Time) float64 {
	return e.StartTime.Sub(now).Minutes()
}

// SecondsUntilStart returns the countdown to start, clamped to zero once
// the meeting is underway.
func (e *CalendarEvent) SecondsUntilStart(now time.Time) int64 {
	secs := int64(e.StartTime.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// EndedBefore reports whether the event finished at least d before now.
func (e *CalendarEvent) EndedBefore(now time.Time, d time.Duration) bool {
	if e.EndTime.IsZero() {
		return false
	}
	return now.Sub(e.EndTime) >= d
}

// HasMeetingURL reports whether the event carries a joinable link.
func (e *CalendarEvent) HasMeetingURL() bool {
	return strings.TrimSpace(e.MeetingURL) != ""
}
