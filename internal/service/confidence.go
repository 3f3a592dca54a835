package service

import (
	"math"
	"strings"
	"time"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

// Confidence factor weights. The factor list is a versioned contract:
// scores are normalized by the number of factors evaluated, so adding a
// factor changes the meaning of every existing score and threshold.
const (
	weightBase         = 0.3
	weightProximityMax = 0.4
	weightMeetingURL   = 0.2
	weightParticipants = 0.15
	weightKeyword      = 0.1
	weightAudio        = 0.15
)

// meetingKeywords are matched case-insensitively as substrings of the
// event title.
var meetingKeywords = []string{
	"meeting", "call", "standup", "sync", "review", "demo",
	"presentation", "interview", "discussion", "workshop",
}

// confidenceScore rates how likely the event is a real meeting happening
// now. Each signal contributes a fixed weight; the sum is divided by the
// number of signals evaluated. The audio signal only enters the average
// when an audio source is wired in.
func confidenceScore(event *domain.CalendarEvent, now time.Time, audio AudioActivitySource) float64 {
	score := weightBase
	factors := 1

	score += proximityWeight(event.MinutesUntilStart(now))
	factors++

	factors++
	if event.HasMeetingURL() {
		score += weightMeetingURL
	}

	factors++
	if len(event.Participants) > 1 {
		score += weightParticipants
	}

	factors++
	if titleHasMeetingKeyword(event.Title) {
		score += weightKeyword
	}

	if audio != nil {
		factors++
		if audio.IsActive() {
			score += weightAudio
		}
	}

	return score / float64(factors)
}

// proximityWeight rewards events close to their start time.
func proximityWeight(minutesUntilStart float64) float64 {
	abs := math.Abs(minutesUntilStart)
	switch {
	case abs <= 2:
		return weightProximityMax
	case abs <= 5:
		return 0.3
	case abs <= 10:
		return 0.2
	default:
		return 0.1
	}
}

func titleHasMeetingKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range meetingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
