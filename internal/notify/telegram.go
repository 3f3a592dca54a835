// Package notify forwards selected UI events to a Telegram chat, for
// users who want meeting alerts away from the desktop.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/events"
)

// TelegramNotifier is an event sink that relays meeting notifications
// and sync problems to a configured chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *zap.SugaredLogger
}

func NewTelegramNotifier(token string, chatID int64, log *zap.SugaredLogger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	log.Infow("telegram notifier ready", "bot", api.Self.UserName)
	return &TelegramNotifier{api: api, chatID: chatID, log: log}, nil
}

// HandleEvent formats and sends relevant events; the rest are ignored.
func (n *TelegramNotifier) HandleEvent(ev events.Event) error {
	var text string

	switch ev.Name {
	case events.NameMeetingNotify:
		text = fmt.Sprintf("🔔 <b>Meeting starting soon</b>\n\n%s\nstarts in %d min",
			ev.Meeting.Title, ev.CountdownSeconds/60)
		if ev.Meeting.HasMeetingURL() {
			text += "\n" + ev.Meeting.MeetingURL
		}
	case events.NameAutoStartTriggered:
		text = fmt.Sprintf("🎙 <b>Recording started</b>\n\n%s", ev.Meeting.Title)
	case events.NameSyncFailed:
		text = fmt.Sprintf("⚠️ <b>Calendar sync failed</b>\n\naccount %d: %s", ev.AccountID, ev.Error)
	case events.NameAuthRequired:
		text = fmt.Sprintf("🔑 <b>Re-authentication required</b>\n\naccount %d", ev.AccountID)
	default:
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
