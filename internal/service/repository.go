package service

import (
	"context"
	"time"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

// Repository is the persistence surface the detection and sync services
// need. storage.Storage satisfies it.
type Repository interface {
	GetActiveAccounts() ([]*domain.CalendarAccount, error)
	GetAccount(id int64) (*domain.CalendarAccount, error)
	SaveEvents(accountID int64, events []domain.CalendarEvent) (int, error)
	GetEventsInDetectionWindow(minutes int) ([]*domain.CalendarEvent, error)
	FindConflictingMeetings(start, end time.Time) ([]*domain.CalendarEvent, error)
	CleanupOldEvents(days int) (int64, error)
}

// CalendarService fetches events from one provider. Implementations
// register with the sync service under their provider key.
type CalendarService interface {
	FetchEvents(ctx context.Context, account *domain.CalendarAccount, rng domain.TimeRange) ([]domain.CalendarEvent, error)
}

// AudioActivitySource reports whether live audio is currently being
// captured. Optional; the detector excludes the audio signal from its
// confidence average when no source is wired in.
type AudioActivitySource interface {
	IsActive() bool
}
