package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
	"github.com/gugamistri/meetingmind-sub001/internal/events"
)

const (
	// detectionInterval is the background scan cadence.
	detectionInterval = 30 * time.Second

	// redetectDebounce suppresses re-emission for an event already
	// detected this recently.
	redetectDebounce = 2 * time.Minute

	// Stale detections are purged once the detection is this old or the
	// meeting ended this long ago.
	detectionMaxAge    = time.Hour
	endedMeetingMaxAge = 30 * time.Minute

	// Auto-start fires from meeting start until this long after it.
	autoStartGrace = 2 * time.Minute
)

// DetectorService continuously scans cached calendar events and scores
// each as a meeting happening now.
type DetectorService struct {
	repo    Repository
	emitter events.Emitter
	audio   AudioActivitySource // may be nil
	log     *zap.SugaredLogger

	mu         sync.RWMutex
	cfg        domain.DetectionConfig
	detections map[string]*domain.DetectedMeeting // keyed by external event id
	running    bool
	quit       chan struct{}
	wg         sync.WaitGroup

	interval time.Duration
	now      func() time.Time
}

// NewDetectorService creates a detector. audio may be nil when no audio
// capture collaborator is available.
func NewDetectorService(repo Repository, emitter events.Emitter, audio AudioActivitySource, cfg domain.DetectionConfig, log *zap.SugaredLogger) *DetectorService {
	return &DetectorService{
		repo:       repo,
		emitter:    emitter,
		audio:      audio,
		log:        log,
		cfg:        cfg,
		detections: make(map[string]*domain.DetectedMeeting),
		interval:   detectionInterval,
		now:        time.Now,
	}
}

// Start launches the background detection loop. Calling Start while
// already running is a no-op.
func (d *DetectorService) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.quit = make(chan struct{})
	quit := d.quit
	d.mu.Unlock()

	d.wg.Add(1)
	go d.runLoop(quit)
	d.log.Infow("meeting detector started", "interval", d.interval)
}

// Stop flips the running flag and waits for the loop to finish its
// current tick. Shutdown latency is bounded by one tick interval.
func (d *DetectorService) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.quit)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("meeting detector stopped")
}

// IsRunning reports whether the detection loop is active.
func (d *DetectorService) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// UpdateConfig hot-swaps the detection config.
func (d *DetectorService) UpdateConfig(cfg domain.DetectionConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// Config returns a copy of the current config.
func (d *DetectorService) Config() domain.DetectionConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *DetectorService) runLoop(quit <-chan struct{}) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := d.scan(); err != nil {
				d.log.Errorw("detection scan failed", "error", err)
			}
		case <-quit:
			return
		}
	}
}

// scan runs one detection pass: fetch events in the window, process the
// qualifying ones, purge stale detections.
func (d *DetectorService) scan() error {
	cfg := d.Config()

	candidates, err := d.repo.GetEventsInDetectionWindow(cfg.DetectionWindowMinutes)
	if err != nil {
		return fmt.Errorf("get events in detection window: %w", err)
	}

	now := d.now()
	for _, event := range candidates {
		confidence, ok := d.shouldDetect(event, now, cfg)
		if !ok {
			continue
		}
		d.processDetected(event, confidence, now, cfg)
	}

	d.cleanupOldDetections(now)
	return nil
}

// shouldDetect filters a candidate: inside the window, not recently
// detected, confidence clears the threshold.
func (d *DetectorService) shouldDetect(event *domain.CalendarEvent, now time.Time, cfg domain.DetectionConfig) (float64, bool) {
	minutes := event.MinutesUntilStart(now)
	if minutes > float64(cfg.DetectionWindowMinutes) || minutes < -float64(cfg.DetectionWindowMinutes) {
		return 0, false
	}

	d.mu.RLock()
	prev, exists := d.detections[event.ExternalEventID]
	d.mu.RUnlock()
	if exists && now.Sub(prev.DetectionTime) < redetectDebounce {
		return 0, false
	}

	confidence := confidenceScore(event, now, d.audio)
	if confidence < cfg.ConfidenceThreshold {
		return 0, false
	}
	return confidence, true
}

// processDetected records the detection and emits detection,
// notification and auto-start events as configured.
func (d *DetectorService) processDetected(event *domain.CalendarEvent, confidence float64, now time.Time, cfg domain.DetectionConfig) {
	countdown := event.SecondsUntilStart(now)

	d.mu.Lock()
	detection, exists := d.detections[event.ExternalEventID]
	if exists {
		detection.Event = event
		detection.Confidence = confidence
		detection.DetectionTime = now
		detection.CountdownSeconds = countdown
	} else {
		detection = &domain.DetectedMeeting{
			Event:            event,
			Confidence:       confidence,
			DetectionTime:    now,
			CountdownSeconds: countdown,
		}
		d.detections[event.ExternalEventID] = detection
	}
	d.mu.Unlock()

	d.log.Infow("meeting detected", "event", event.ExternalEventID,
		"title", event.Title, "confidence", confidence, "countdown_s", countdown)

	d.emitter.Emit(events.Event{
		Name:             events.NameMeetingDetected,
		AccountID:        event.AccountID,
		Meeting:          event,
		Confidence:       confidence,
		CountdownSeconds: countdown,
	})

	minutes := event.MinutesUntilStart(now)
	if cfg.NotificationEnabled && minutes >= 0 && minutes <= float64(cfg.NotificationMinutesBefore) {
		d.emitter.Emit(events.Event{
			Name:             events.NameMeetingNotify,
			AccountID:        event.AccountID,
			Meeting:          event,
			Confidence:       confidence,
			CountdownSeconds: countdown,
		})
	}

	if cfg.AutoStartEnabled && minutes <= 0 && minutes >= -autoStartGrace.Minutes() && confidence >= cfg.ConfidenceThreshold {
		if err := d.TriggerAutoStart(event.ExternalEventID); err != nil {
			d.log.Errorw("auto-start trigger failed", "event", event.ExternalEventID, "error", err)
		}
	}
}

// TriggerAutoStart flips the detection's auto-start flag exactly once
// and emits an auto-start event carrying a fresh correlation id. Calling
// it again for an already-triggered event is a no-op. Actually starting
// audio capture is left to the collaborator reacting to the event.
func (d *DetectorService) TriggerAutoStart(externalEventID string) error {
	d.mu.Lock()
	detection, exists := d.detections[externalEventID]
	if !exists {
		d.mu.Unlock()
		return fmt.Errorf("no detection for event %s", externalEventID)
	}
	if detection.AutoStartTriggered {
		d.mu.Unlock()
		return nil
	}
	detection.AutoStartTriggered = true
	event := detection.Event
	confidence := detection.Confidence
	d.mu.Unlock()

	correlationID := uuid.NewString()
	d.log.Infow("auto-start triggered", "event", externalEventID, "correlation_id", correlationID)

	d.emitter.Emit(events.Event{
		Name:          events.NameAutoStartTriggered,
		AccountID:     event.AccountID,
		Meeting:       event,
		Confidence:    confidence,
		CorrelationID: correlationID,
	})
	return nil
}

// cleanupOldDetections drops detections past their age limit or whose
// meeting ended long enough ago.
func (d *DetectorService) cleanupOldDetections(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, detection := range d.detections {
		if now.Sub(detection.DetectionTime) >= detectionMaxAge ||
			detection.Event.EndedBefore(now, endedMeetingMaxAge) {
			delete(d.detections, id)
		}
	}
}

// ManualDetect runs one scan synchronously and returns the current
// detections.
func (d *DetectorService) ManualDetect() ([]domain.DetectedMeeting, error) {
	if err := d.scan(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]domain.DetectedMeeting, 0, len(d.detections))
	for _, detection := range d.detections {
		result = append(result, *detection)
	}
	return result, nil
}

// CheckConflicts returns cached events overlapping [start, end).
func (d *DetectorService) CheckConflicts(start, end time.Time) ([]*domain.CalendarEvent, error) {
	return d.repo.FindConflictingMeetings(start, end)
}
