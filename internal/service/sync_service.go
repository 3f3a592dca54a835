package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/circuitbreaker"
	"github.com/gugamistri/meetingmind-sub001/internal/domain"
	"github.com/gugamistri/meetingmind-sub001/internal/events"
	"github.com/gugamistri/meetingmind-sub001/internal/ratelimit"
)

const (
	// syncLookaheadDays is the fixed fetch window for each sync.
	syncLookaheadDays = 30

	// incrementalCooldown debounces repeat syncs for the same account.
	incrementalCooldown = 5 * time.Minute
)

// AccountSyncResult is the per-account outcome of a batch sync.
type AccountSyncResult struct {
	EventsSynced int
	Error        string
}

// SyncService pulls events from each configured provider into the local
// cache and tracks per-account sync status.
type SyncService struct {
	repo     Repository
	emitter  events.Emitter
	limiter  *ratelimit.Limiter
	breakers circuitbreaker.Manager
	log      *zap.SugaredLogger

	mu       sync.RWMutex
	services map[string]CalendarService   // provider -> implementation
	statuses map[int64]*domain.SyncStatus // account id -> status

	retentionDays int
	now           func() time.Time
}

func NewSyncService(repo Repository, emitter events.Emitter, limiter *ratelimit.Limiter, breakers circuitbreaker.Manager, retentionDays int, log *zap.SugaredLogger) *SyncService {
	return &SyncService{
		repo:          repo,
		emitter:       emitter,
		limiter:       limiter,
		breakers:      breakers,
		log:           log,
		services:      make(map[string]CalendarService),
		statuses:      make(map[int64]*domain.SyncStatus),
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// RegisterCalendarService registers a provider implementation.
func (s *SyncService) RegisterCalendarService(provider string, svc CalendarService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[provider] = svc
	s.log.Infow("calendar service registered", "provider", provider)
}

// SyncAccount syncs one account. A call while a sync for the same
// account is already in progress is accepted but does nothing; the
// in-progress flag is the serialization point. Status is finalized and
// a completion or failure event emitted no matter how the sync ends.
func (s *SyncService) SyncAccount(ctx context.Context, accountID int64) (int, error) {
	s.mu.Lock()
	status, ok := s.statuses[accountID]
	if !ok {
		status = &domain.SyncStatus{AccountID: accountID}
		s.statuses[accountID] = status
	}
	if status.SyncInProgress {
		s.mu.Unlock()
		s.log.Debugw("sync already in progress, skipping", "account", accountID)
		return 0, nil
	}
	status.SyncInProgress = true
	s.mu.Unlock()

	s.emitter.Emit(events.Event{Name: events.NameSyncStarted, AccountID: accountID})

	synced, err := s.performSync(ctx, accountID)

	s.mu.Lock()
	status.SyncInProgress = false
	if err != nil {
		status.LastError = err.Error()
	} else {
		now := s.now()
		status.LastSync = &now
		status.EventsSynced = synced
		status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.emitter.Emit(events.Event{
			Name:      events.NameSyncFailed,
			AccountID: accountID,
			Error:     err.Error(),
		})
		return 0, err
	}

	s.emitter.Emit(events.Event{
		Name:         events.NameSyncCompleted,
		AccountID:    accountID,
		EventsSynced: synced,
	})
	return synced, nil
}

// performSync resolves the account, fetches a fixed look-ahead window
// through the rate limiter and circuit breaker, and saves the result.
func (s *SyncService) performSync(ctx context.Context, accountID int64) (int, error) {
	account, err := s.repo.GetAccount(accountID)
	if err != nil {
		return 0, fmt.Errorf("get account %d: %w", accountID, err)
	}
	if account == nil {
		return 0, fmt.Errorf("%w: %d", domain.ErrAccountNotFound, accountID)
	}

	s.mu.RLock()
	svc, registered := s.services[account.Provider]
	s.mu.RUnlock()
	if !registered {
		return 0, fmt.Errorf("no calendar service registered for provider %q", account.Provider)
	}

	endpoint := fmt.Sprintf("%s/accounts/%d/events", account.Provider, accountID)
	if err := s.limiter.Allow(endpoint, 1); err != nil {
		return 0, err
	}

	now := s.now()
	rng := domain.TimeRange{From: now, To: now.AddDate(0, 0, syncLookaheadDays)}

	s.breakers.GetOrCreate(account.Provider, circuitbreaker.ProviderConfig())
	result, err := s.breakers.Execute(account.Provider, func() (any, error) {
		return svc.FetchEvents(ctx, account, rng)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			s.emitter.Emit(events.Event{
				Name:      events.NameAuthRequired,
				AccountID: accountID,
				Error:     err.Error(),
			})
		}
		return 0, fmt.Errorf("fetch events for account %d: %w", accountID, err)
	}

	fetched := result.([]domain.CalendarEvent)
	saved, err := s.repo.SaveEvents(accountID, fetched)
	if err != nil {
		return 0, fmt.Errorf("save events for account %d: %w", accountID, err)
	}
	return saved, nil
}

// IncrementalSync skips the sync when the last successful sync for the
// account is under five minutes old, otherwise delegates to SyncAccount.
// Despite the name this is a full refresh behind a cooldown, not a
// delta-based protocol.
func (s *SyncService) IncrementalSync(ctx context.Context, accountID int64) (int, error) {
	s.mu.RLock()
	status, ok := s.statuses[accountID]
	recent := ok && status.LastSync != nil && s.now().Sub(*status.LastSync) < incrementalCooldown
	s.mu.RUnlock()

	if recent {
		s.log.Debugw("incremental sync skipped, last sync too recent", "account", accountID)
		return 0, nil
	}
	return s.SyncAccount(ctx, accountID)
}

// SyncAllActive runs SyncAccount for every active account. One account's
// failure is logged and never aborts the others.
func (s *SyncService) SyncAllActive(ctx context.Context) (map[int64]AccountSyncResult, error) {
	accounts, err := s.repo.GetActiveAccounts()
	if err != nil {
		return nil, fmt.Errorf("get active accounts: %w", err)
	}

	results := make(map[int64]AccountSyncResult, len(accounts))
	for _, account := range accounts {
		synced, err := s.SyncAccount(ctx, account.ID)
		if err != nil {
			s.log.Errorw("account sync failed", "account", account.ID, "error", err)
			results[account.ID] = AccountSyncResult{Error: err.Error()}
			continue
		}
		results[account.ID] = AccountSyncResult{EventsSynced: synced}
	}
	return results, nil
}

// ForceSyncAll syncs every active account on demand and emits an
// accounts-updated event with the batch outcome.
func (s *SyncService) ForceSyncAll(ctx context.Context) (map[int64]AccountSyncResult, error) {
	results, err := s.SyncAllActive(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += r.EventsSynced
	}
	s.emitter.Emit(events.Event{Name: events.NameAccountsUpdated, EventsSynced: total})
	return results, nil
}

// GetSyncStatus returns a copy of the account's sync status, or a
// default status if no sync has been attempted yet.
func (s *SyncService) GetSyncStatus(accountID int64) domain.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status, ok := s.statuses[accountID]; ok {
		return *status
	}
	return domain.SyncStatus{AccountID: accountID}
}

// GetAllSyncStatuses returns a snapshot of every recorded status.
func (s *SyncService) GetAllSyncStatuses() map[int64]domain.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[int64]domain.SyncStatus, len(s.statuses))
	for id, status := range s.statuses {
		snapshot[id] = *status
	}
	return snapshot
}

// CleanupOldEvents deletes cached events older than the retention
// window.
func (s *SyncService) CleanupOldEvents(ctx context.Context) error {
	deleted, err := s.repo.CleanupOldEvents(s.retentionDays)
	if err != nil {
		return fmt.Errorf("cleanup old events: %w", err)
	}
	if deleted > 0 {
		s.log.Infow("old events cleaned up", "deleted", deleted, "retention_days", s.retentionDays)
	}
	return nil
}
