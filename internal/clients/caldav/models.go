package caldav

import "time"

// Calendar represents a discovered CalDAV calendar collection.
type Calendar struct {
	ID          string // calendar path/URL
	DisplayName string
	URL         string
}

// rawEvent is a parsed VEVENT before conversion to the domain model.
type rawEvent struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	URL          string
	StartTime    time.Time
	EndTime      time.Time
	AllDay       bool
	Participants []string
	RRule        string
}
