package service

import (
	"context"
	"sync"
	"time"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
	"github.com/gugamistri/meetingmind-sub001/internal/events"
)

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu             sync.Mutex
	accounts       map[int64]*domain.CalendarAccount
	windowEvents   []*domain.CalendarEvent
	conflicts      []*domain.CalendarEvent
	saved          map[int64][]domain.CalendarEvent
	cleanupCalls   []int
	getAccountErr  error
	saveEventsErr  error
	windowQueryErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts: make(map[int64]*domain.CalendarAccount),
		saved:    make(map[int64][]domain.CalendarEvent),
	}
}

func (r *fakeRepo) addAccount(id int64, provider string) {
	r.accounts[id] = &domain.CalendarAccount{
		ID: id, Provider: provider, Email: "user@example.com", IsActive: true,
	}
}

func (r *fakeRepo) GetActiveAccounts() ([]*domain.CalendarAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CalendarAccount
	for _, a := range r.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetAccount(id int64) (*domain.CalendarAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getAccountErr != nil {
		return nil, r.getAccountErr
	}
	return r.accounts[id], nil
}

func (r *fakeRepo) SaveEvents(accountID int64, evs []domain.CalendarEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveEventsErr != nil {
		return 0, r.saveEventsErr
	}
	r.saved[accountID] = append(r.saved[accountID], evs...)
	return len(evs), nil
}

func (r *fakeRepo) GetEventsInDetectionWindow(minutes int) ([]*domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.windowQueryErr != nil {
		return nil, r.windowQueryErr
	}
	return r.windowEvents, nil
}

func (r *fakeRepo) FindConflictingMeetings(start, end time.Time) ([]*domain.CalendarEvent, error) {
	return r.conflicts, nil
}

func (r *fakeRepo) CleanupOldEvents(days int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupCalls = append(r.cleanupCalls, days)
	return 0, nil
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) named(name string) []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []events.Event
	for _, ev := range e.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// fakeCalendarService returns canned events or a canned error.
type fakeCalendarService struct {
	mu     sync.Mutex
	events []domain.CalendarEvent
	err    error
	calls  int
}

func (f *fakeCalendarService) FetchEvents(ctx context.Context, account *domain.CalendarAccount, rng domain.TimeRange) ([]domain.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

// staticAudio is an AudioActivitySource with a fixed answer.
type staticAudio struct{ active bool }

func (a *staticAudio) IsActive() bool { return a.active }
