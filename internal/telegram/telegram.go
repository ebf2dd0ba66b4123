// Package telegram wraps the Telegram Bot API for the Telegram transport.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// pollTimeout is the long-polling timeout in seconds.
const pollTimeout = 60

// Bot sends and receives Telegram messages (implemented by Client and MockClient).
type Bot interface {
	SendMessage(ctx context.Context, chatID int64, body string) error
	SendChoices(ctx context.Context, chatID int64, body string, choices []models.Choice) error
	SendPhoto(ctx context.Context, chatID int64, img models.Image, caption string) error
	// Listen starts delivering updates to fn until ctx is done. It returns immediately.
	Listen(ctx context.Context, fn func(models.Inbound)) error
}

// Client wraps tgbotapi.BotAPI.
type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient authorizes the bot token.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram bot token must be provided")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)
	return &Client{api: api}, nil
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(_ context.Context, chatID int64, body string) error {
	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, body)); err != nil {
		slog.Error("Telegram SendMessage failed", "error", err, "chat_id", chatID)
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return nil
}

// SendChoices sends body with an inline keyboard, one button per row.
func (c *Client) SendChoices(_ context.Context, chatID int64, body string, choices []models.Choice) error {
	msg := tgbotapi.NewMessage(chatID, body)
	if len(choices) > 0 {
		msg.ReplyMarkup = Keyboard(choices)
	}
	if _, err := c.api.Send(msg); err != nil {
		slog.Error("Telegram SendChoices failed", "error", err, "chat_id", chatID, "choices", len(choices))
		return fmt.Errorf("failed to send keyboard to %d: %w", chatID, err)
	}
	return nil
}

// SendPhoto uploads a local image, or lets Telegram fetch img.URL when there is no local copy.
func (c *Client) SendPhoto(_ context.Context, chatID int64, img models.Image, caption string) error {
	var file tgbotapi.RequestFileData
	switch {
	case img.Path != "":
		file = tgbotapi.FilePath(img.Path)
	case img.URL != "":
		file = tgbotapi.FileURL(img.URL)
	default:
		return errors.New("image has neither path nor URL")
	}
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = caption
	if _, err := c.api.Send(photo); err != nil {
		slog.Error("Telegram SendPhoto failed", "error", err, "chat_id", chatID)
		return fmt.Errorf("failed to send photo to %d: %w", chatID, err)
	}
	return nil
}

// Listen long-polls for updates and forwards messages and button presses to fn.
func (c *Client) Listen(ctx context.Context, fn func(models.Inbound)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := c.api.GetUpdatesChan(u)

	go func() {
		defer slog.Debug("Telegram update loop stopped")
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.CallbackQuery != nil {
					if _, err := c.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
						slog.Warn("Telegram callback answer failed", "error", err)
					}
				}
				if in, ok := InboundFromUpdate(update); ok {
					fn(in)
				}
			}
		}
	}()
	return nil
}

// Keyboard builds an inline keyboard whose buttons carry each choice's data.
func Keyboard(choices []models.Choice) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, ch := range choices {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(ch.Label, ch.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// InboundFromUpdate converts a text message or callback query. The chat ID is the identity.
func InboundFromUpdate(u tgbotapi.Update) (models.Inbound, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return models.Inbound{
			From: strconv.FormatInt(u.CallbackQuery.Message.Chat.ID, 10),
			Text: u.CallbackQuery.Data,
			Kind: models.InboundButton,
			Time: time.Now(),
		}, true
	case u.Message != nil && u.Message.Chat != nil && u.Message.Text != "":
		return models.Inbound{
			From: strconv.FormatInt(u.Message.Chat.ID, 10),
			Text: u.Message.Text,
			Kind: models.InboundText,
			Time: u.Message.Time(),
		}, true
	}
	return models.Inbound{}, false
}

// MockClient records outbound messages and lets tests inject updates.
type MockClient struct {
	mu      sync.Mutex
	Sent    []Sent
	Err     error
	handler func(models.Inbound)
}

// Sent is one outbound message captured by MockClient.
type Sent struct {
	ChatID  int64
	Body    string
	Choices []models.Choice
	Photo   *models.Image
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(_ context.Context, chatID int64, body string) error {
	return m.record(Sent{ChatID: chatID, Body: body})
}

func (m *MockClient) SendChoices(_ context.Context, chatID int64, body string, choices []models.Choice) error {
	return m.record(Sent{ChatID: chatID, Body: body, Choices: choices})
}

func (m *MockClient) SendPhoto(_ context.Context, chatID int64, img models.Image, caption string) error {
	return m.record(Sent{ChatID: chatID, Body: caption, Photo: &img})
}

func (m *MockClient) Listen(_ context.Context, fn func(models.Inbound)) error {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
	return nil
}

// Deliver hands in to the registered listener.
func (m *MockClient) Deliver(in models.Inbound) {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()
	if fn != nil {
		fn(in)
	}
}

func (m *MockClient) record(s Sent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, s)
	return nil
}

// Messages returns a copy of the captured messages.
func (m *MockClient) Messages() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.Sent...)
}
