package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

type Config struct {
	DatabasePath string
	Timezone     *time.Location

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string

	TelegramToken string
	NotifyChatID  int64

	Detection          domain.DetectionConfig
	EventRetentionDays int
}

func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/meetingmind.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	detection := domain.DefaultDetectionConfig()
	if v := os.Getenv("DETECTION_WINDOW_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DETECTION_WINDOW_MINUTES: %w", err)
		}
		detection.DetectionWindowMinutes = n
	}
	if v := os.Getenv("CONFIDENCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CONFIDENCE_THRESHOLD: %w", err)
		}
		detection.ConfidenceThreshold = f
	}
	if v := os.Getenv("NOTIFICATION_MINUTES_BEFORE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFICATION_MINUTES_BEFORE: %w", err)
		}
		detection.NotificationMinutesBefore = n
	}
	detection.AutoStartEnabled = envBool("AUTO_START_ENABLED", detection.AutoStartEnabled)
	detection.NotificationEnabled = envBool("NOTIFICATION_ENABLED", detection.NotificationEnabled)

	retentionDays := 30
	if v := os.Getenv("EVENT_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVENT_RETENTION_DAYS: %w", err)
		}
		retentionDays = n
	}

	var notifyChatID int64
	if v := os.Getenv("NOTIFY_CHAT_ID"); v != "" {
		notifyChatID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_CHAT_ID: %w", err)
		}
	}

	return &Config{
		DatabasePath:       dbPath,
		Timezone:           tz,
		CalDAVURL:          os.Getenv("CALDAV_URL"),
		CalDAVUsername:     os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:     os.Getenv("CALDAV_PASSWORD"),
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		NotifyChatID:       notifyChatID,
		Detection:          detection,
		EventRetentionDays: retentionDays,
	}, nil
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
