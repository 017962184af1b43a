// Package notify sends operational alerts to a Telegram admin chat.
// Send-only: no polling, no commands. Driven by the slog alert handler in
// lib/logger.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"qrpass/lib/sl"
)

type TgBot struct {
	log    *slog.Logger
	api    *tgbotapi.Bot
	chatId int64
}

func NewTgBot(apiKey string, chatId int64, log *slog.Logger) (*TgBot, error) {
	if chatId == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	return &TgBot{
		log:    log.With(sl.Module("notify")),
		api:    api,
		chatId: chatId,
	}, nil
}

// SendMessage delivers one MarkdownV2 message to the admin chat.
func (t *TgBot) SendMessage(msg string) {
	_, err := t.api.SendMessage(t.chatId, msg, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.Debug("sending telegram message", sl.Err(err))
	}
}

// SendMessageWithLevel delivers a pre-formatted alert. The level is kept
// in the signature for parity with the slog handler; the message text
// already carries it.
func (t *TgBot) SendMessageWithLevel(msg string, _ slog.Level) {
	t.SendMessage(msg)
}

// Sanitize escapes MarkdownV2 reserved characters.
func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}
	return sanitized
}
