package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/meetingmind.db", cfg.DatabasePath)
	assert.Equal(t, "UTC", cfg.Timezone.String())
	assert.Equal(t, 10, cfg.Detection.DetectionWindowMinutes)
	assert.InDelta(t, 0.2, cfg.Detection.ConfidenceThreshold, 1e-9)
	assert.False(t, cfg.Detection.AutoStartEnabled)
	assert.True(t, cfg.Detection.NotificationEnabled)
	assert.Equal(t, 5, cfg.Detection.NotificationMinutesBefore)
	assert.Equal(t, 30, cfg.EventRetentionDays)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/mm.db")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("DETECTION_WINDOW_MINUTES", "20")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.35")
	t.Setenv("AUTO_START_ENABLED", "true")
	t.Setenv("NOTIFICATION_ENABLED", "false")
	t.Setenv("NOTIFICATION_MINUTES_BEFORE", "10")
	t.Setenv("EVENT_RETENTION_DAYS", "90")
	t.Setenv("NOTIFY_CHAT_ID", "12345")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/mm.db", cfg.DatabasePath)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone.String())
	assert.Equal(t, 20, cfg.Detection.DetectionWindowMinutes)
	assert.InDelta(t, 0.35, cfg.Detection.ConfidenceThreshold, 1e-9)
	assert.True(t, cfg.Detection.AutoStartEnabled)
	assert.False(t, cfg.Detection.NotificationEnabled)
	assert.Equal(t, 10, cfg.Detection.NotificationMinutesBefore)
	assert.Equal(t, 90, cfg.EventRetentionDays)
	assert.Equal(t, int64(12345), cfg.NotifyChatID)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("TIMEZONE", "Nowhere/Nothing")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}
