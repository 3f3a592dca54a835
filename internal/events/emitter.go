package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

// Event names emitted to the UI channel.
const (
	NameSyncStarted        = "sync-started"
	NameSyncCompleted      = "sync-completed"
	NameSyncFailed         = "sync-failed"
	NameAuthRequired       = "authentication-required"
	NameMeetingDetected    = "meeting-detected"
	NameMeetingNotify      = "meeting-notification"
	NameAutoStartTriggered = "auto-start-triggered"
	NameAccountsUpdated    = "accounts-updated"
)

// Event is a tagged payload sent to the UI channel. Only the fields
// relevant to the named event are populated.
type Event struct {
	Name             string
	At               time.Time
	AccountID        int64
	Meeting          *domain.CalendarEvent
	Confidence       float64
	CountdownSeconds int64
	EventsSynced     int
	Error            string // human-readable, structured kind is not exposed
	CorrelationID    string
}

// Emitter publishes events to whoever is listening.
type Emitter interface {
	Emit(ev Event)
}

// Sink receives published events.
type Sink interface {
	HandleEvent(ev Event) error
}

// Bus fans events out to registered sinks. Sink failures are logged and
// never propagate back to the emitting service.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
	log   *zap.SugaredLogger
}

func NewBus(log *zap.SugaredLogger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Bus) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.HandleEvent(ev); err != nil {
			b.log.Warnw("event sink failed", "event", ev.Name, "error", err)
		}
	}
}
