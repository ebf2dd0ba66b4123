package messaging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/telegram"
)

// TelegramService implements Service on top of a Telegram bot. Identities are chat IDs.
type TelegramService struct {
	bot   telegram.Bot
	inbox *inbox
}

// NewTelegramService wraps bot.
func NewTelegramService(bot telegram.Bot) *TelegramService {
	return &TelegramService{bot: bot, inbox: newInbox("TelegramService")}
}

// ValidateAndCanonicalizeRecipient accepts a decimal chat ID (negative for groups).
func (s *TelegramService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	_, canonical, err := s.chatID(recipient)
	return canonical, err
}

func (s *TelegramService) chatID(recipient string) (int64, string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil || id == 0 {
		return 0, "", &RecipientError{Recipient: recipient, Reason: "not a telegram chat id"}
	}
	return id, strconv.FormatInt(id, 10), nil
}

func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	return s.bot.Listen(ctx, func(in models.Inbound) { s.inbox.emit(in) })
}

func (s *TelegramService) Stop() error {
	s.inbox.close()
	return nil
}

func (s *TelegramService) Responses() <-chan models.Inbound {
	return s.inbox.ch
}

func (s *TelegramService) SendMessage(ctx context.Context, to, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	id, _, err := s.chatID(to)
	if err != nil {
		return err
	}
	return s.bot.SendMessage(ctx, id, body)
}

// SendChoices uses a native inline keyboard.
func (s *TelegramService) SendChoices(ctx context.Context, to, body string, choices []models.Choice) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	id, _, err := s.chatID(to)
	if err != nil {
		return err
	}
	return s.bot.SendChoices(ctx, id, body, choices)
}

func (s *TelegramService) SendImage(ctx context.Context, to string, img models.Image, caption string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	id, _, err := s.chatID(to)
	if err != nil {
		return err
	}
	return s.bot.SendPhoto(ctx, id, img, caption)
}
