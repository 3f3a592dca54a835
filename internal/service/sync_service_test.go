package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/circuitbreaker"
	"github.com/gugamistri/meetingmind-sub001/internal/domain"
	"github.com/gugamistri/meetingmind-sub001/internal/events"
	"github.com/gugamistri/meetingmind-sub001/internal/ratelimit"
)

func newTestSyncService(repo *fakeRepo, emitter *recordingEmitter) *SyncService {
	log := zap.NewNop().Sugar()
	return NewSyncService(repo, emitter, ratelimit.New(log), circuitbreaker.NewManager(log), 30, log)
}

func syncEvent(id string) domain.CalendarEvent {
	now := time.Now()
	return domain.CalendarEvent{
		ExternalEventID: id,
		Title:           "Planning meeting",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
	}
}

func TestSyncAccount_Success(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	emitter := &recordingEmitter{}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", &fakeCalendarService{
		events: []domain.CalendarEvent{syncEvent("a"), syncEvent("b")},
	})

	synced, err := s.SyncAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	status := s.GetSyncStatus(1)
	assert.False(t, status.SyncInProgress)
	assert.Equal(t, 2, status.EventsSynced)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastSync)

	assert.Len(t, emitter.named(events.NameSyncStarted), 1)
	completed := emitter.named(events.NameSyncCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 2, completed[0].EventsSynced)
	assert.Len(t, repo.saved[1], 2)
}

func TestSyncAccount_AccountNotFound(t *testing.T) {
	repo := newFakeRepo()
	emitter := &recordingEmitter{}
	s := newTestSyncService(repo, emitter)

	_, err := s.SyncAccount(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	status := s.GetSyncStatus(42)
	assert.False(t, status.SyncInProgress)
	assert.NotEmpty(t, status.LastError)
	assert.Len(t, emitter.named(events.NameSyncFailed), 1)
}

func TestSyncAccount_InvalidTokenEmitsAuthRequired(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	emitter := &recordingEmitter{}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", &fakeCalendarService{
		err: fmt.Errorf("%w: 401 unauthorized", domain.ErrInvalidToken),
	})

	_, err := s.SyncAccount(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	status := s.GetSyncStatus(1)
	assert.False(t, status.SyncInProgress)
	assert.NotEmpty(t, status.LastError)
	assert.Nil(t, status.LastSync)

	assert.Len(t, emitter.named(events.NameAuthRequired), 1)
	assert.Len(t, emitter.named(events.NameSyncFailed), 1)
}

func TestSyncAccount_InProgressIsRedundantNoOp(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	emitter := &recordingEmitter{}
	svc := &fakeCalendarService{}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", svc)

	s.mu.Lock()
	s.statuses[1] = &domain.SyncStatus{AccountID: 1, SyncInProgress: true}
	s.mu.Unlock()

	synced, err := s.SyncAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
	assert.Equal(t, 0, svc.calls)
	assert.Empty(t, emitter.named(events.NameSyncStarted))
}

func TestSyncAccount_UnregisteredProvider(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "google")
	emitter := &recordingEmitter{}
	s := newTestSyncService(repo, emitter)

	_, err := s.SyncAccount(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no calendar service registered")
}

func TestIncrementalSync_DebouncesRecentSync(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	emitter := &recordingEmitter{}
	svc := &fakeCalendarService{events: []domain.CalendarEvent{syncEvent("a")}}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", svc)

	recent := time.Now().Add(-time.Minute)
	s.mu.Lock()
	s.statuses[1] = &domain.SyncStatus{AccountID: 1, LastSync: &recent}
	s.mu.Unlock()

	synced, err := s.IncrementalSync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
	assert.Equal(t, 0, svc.calls)
}

func TestIncrementalSync_RunsWhenStale(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	emitter := &recordingEmitter{}
	svc := &fakeCalendarService{events: []domain.CalendarEvent{syncEvent("a")}}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", svc)

	stale := time.Now().Add(-10 * time.Minute)
	s.mu.Lock()
	s.statuses[1] = &domain.SyncStatus{AccountID: 1, LastSync: &stale}
	s.mu.Unlock()

	synced, err := s.IncrementalSync(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 1, svc.calls)
}

func TestForceSyncAll_IsolatesAccountFailures(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	repo.addAccount(2, "broken")
	repo.addAccount(3, "caldav")
	emitter := &recordingEmitter{}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", &fakeCalendarService{
		events: []domain.CalendarEvent{syncEvent("a")},
	})
	s.RegisterCalendarService("broken", &fakeCalendarService{
		err: errors.New("provider exploded"),
	})

	results, err := s.ForceSyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[1].EventsSynced)
	assert.Empty(t, results[1].Error)
	assert.NotEmpty(t, results[2].Error)
	assert.Equal(t, 1, results[3].EventsSynced)
	assert.Empty(t, results[3].Error)

	assert.Len(t, emitter.named(events.NameAccountsUpdated), 1)
	assert.Len(t, emitter.named(events.NameSyncFailed), 1)
	assert.Len(t, emitter.named(events.NameSyncCompleted), 2)
}

func TestGetSyncStatus_DefaultWhenUnknown(t *testing.T) {
	s := newTestSyncService(newFakeRepo(), &recordingEmitter{})

	status := s.GetSyncStatus(99)
	assert.Equal(t, int64(99), status.AccountID)
	assert.Nil(t, status.LastSync)
	assert.False(t, status.SyncInProgress)
}

func TestCircuitBreakerOpen_SurfacesServiceUnavailable(t *testing.T) {
	repo := newFakeRepo()
	repo.addAccount(1, "caldav")
	emitter := &recordingEmitter{}
	svc := &fakeCalendarService{err: errors.New("timeout")}
	s := newTestSyncService(repo, emitter)
	s.RegisterCalendarService("caldav", svc)

	// ProviderConfig trips after 5 consecutive failures.
	for i := 0; i < 5; i++ {
		_, err := s.SyncAccount(context.Background(), 1)
		require.Error(t, err)
	}

	callsBefore := svc.calls
	_, err := s.SyncAccount(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, callsBefore, svc.calls)
}

func TestCleanupOldEvents_UsesRetention(t *testing.T) {
	repo := newFakeRepo()
	s := newTestSyncService(repo, &recordingEmitter{})

	require.NoError(t, s.CleanupOldEvents(context.Background()))
	require.Len(t, repo.cleanupCalls, 1)
	assert.Equal(t, 30, repo.cleanupCalls[0])
}
