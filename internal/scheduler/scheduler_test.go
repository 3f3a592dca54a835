package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/service"
)

type fakeSyncJobs struct {
	syncCalls    atomic.Int32
	cleanupCalls atomic.Int32
}

func (f *fakeSyncJobs) SyncAllActive(ctx context.Context) (map[int64]service.AccountSyncResult, error) {
	f.syncCalls.Add(1)
	return map[int64]service.AccountSyncResult{}, nil
}

func (f *fakeSyncJobs) CleanupOldEvents(ctx context.Context) error {
	f.cleanupCalls.Add(1)
	return nil
}

type fakeDetectorJobs struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (f *fakeDetectorJobs) Start() { f.started.Store(true) }
func (f *fakeDetectorJobs) Stop()  { f.stopped.Store(true) }

func TestScheduler_StartStopLifecycle(t *testing.T) {
	sync := &fakeSyncJobs{}
	detector := &fakeDetectorJobs{}
	s := New(time.UTC, sync, detector, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool { return detector.started.Load() }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	s.Stop()
	assert.True(t, detector.stopped.Load())
}

func TestScheduler_JobCallbacks(t *testing.T) {
	sync := &fakeSyncJobs{}
	s := New(time.UTC, sync, &fakeDetectorJobs{}, zap.NewNop().Sugar())

	s.runPeriodicSync(context.Background())
	s.runCleanup(context.Background())

	assert.Equal(t, int32(1), sync.syncCalls.Load())
	assert.Equal(t, int32(1), sync.cleanupCalls.Load())
}
