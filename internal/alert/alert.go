// Package alert delivers high-priority operator notifications about failed runs.
package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
)

// Alerter sends one operator notification.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Alert(context.Context, string, string) error { return nil }

// Sender is the slice of the Telegram bot API used here; *telego.Bot satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

type Telegram struct {
	bot     Sender
	chatID  int64
	timeout time.Duration
}

// NewTelegram builds a bot for token that posts into chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, chatID), nil
}

func NewTelegramWithSender(bot Sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, timeout: 10 * time.Second}
}

func (t *Telegram) Alert(ctx context.Context, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	text := subject
	if body = strings.TrimSpace(body); body != "" {
		text += "\n\n" + body
	}
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: t.chatID},
		Text:   text,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}
