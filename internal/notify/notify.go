// Package notify delivers price alerts when an offer is snatched.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snatcher/internal/config"
)

// Notifier sends a price alert to an item's owner. Delivery failure never
// rolls back a snatch; the engine logs it and moves on.
type Notifier interface {
	SendPriceAlert(ctx context.Context, ownerEmail, itemURL string, achievedPrice float64) error
}

// MailNotifier sends alerts over SMTP.
type MailNotifier struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// NewMailNotifier creates a MailNotifier.
func NewMailNotifier(cfg config.SMTPConfig, logger *slog.Logger) *MailNotifier {
	return &MailNotifier{cfg: cfg, logger: logger}
}

func (m *MailNotifier) SendPriceAlert(ctx context.Context, ownerEmail, itemURL string, achievedPrice float64) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Holiday price snatched!\r\n\r\n"+
			"Great news! The holiday you are tracking hit your target price.\r\n\r\n"+
			"Price: %.2f\r\nLink: %s\r\n",
		m.cfg.From, ownerEmail, achievedPrice, itemURL)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{ownerEmail}, []byte(body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", ownerEmail, err)
	}
	m.logger.Info("price alert mailed", "to", ownerEmail, "url", itemURL)
	return nil
}

// TelegramNotifier posts alerts to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegramNotifier creates a TelegramNotifier, verifying the token with
// the Telegram API.
func NewTelegramNotifier(cfg config.TelegramConfig, logger *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

func (t *TelegramNotifier) SendPriceAlert(ctx context.Context, ownerEmail, itemURL string, achievedPrice float64) error {
	text := fmt.Sprintf("Snatched for %s at %.2f\n%s", ownerEmail, achievedPrice, itemURL)
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// MultiNotifier fans an alert out to every channel, collecting failures.
type MultiNotifier []Notifier

func (m MultiNotifier) SendPriceAlert(ctx context.Context, ownerEmail, itemURL string, achievedPrice float64) error {
	var errs []error
	for _, n := range m {
		if err := n.SendPriceAlert(ctx, ownerEmail, itemURL, achievedPrice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
