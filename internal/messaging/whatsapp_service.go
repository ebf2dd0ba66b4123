package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based client.
// Choices are rendered as a numbered list.
type WhatsAppService struct {
	client  whatsapp.Sender
	inbox   *inbox
	choices *choiceMemory
}

// NewWhatsAppService creates a new WhatsAppService wrapping client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{client: client, inbox: newInbox("WhatsAppService"), choices: newChoiceMemory()}
}

// ValidateAndCanonicalizeRecipient strips non-digits and requires at least 6 digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalPhone(recipient)
}

// Start subscribes to inbound messages.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	s.client.Subscribe(func(from, text string, at time.Time) {
		s.inbox.emit(s.choices.resolve(models.Inbound{From: from, Text: text, Kind: models.InboundText, Time: at}))
	})
	return nil
}

func (s *WhatsAppService) Stop() error {
	s.inbox.close()
	return nil
}

func (s *WhatsAppService) Responses() <-chan models.Inbound {
	return s.inbox.ch
}

func (s *WhatsAppService) SendMessage(ctx context.Context, to, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := canonicalPhone(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

func (s *WhatsAppService) SendChoices(ctx context.Context, to, body string, choices []models.Choice) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := canonicalPhone(to)
	if err != nil {
		return err
	}
	s.choices.remember(canonical, choices)
	return s.client.SendMessage(ctx, canonical, renderChoices(body, choices))
}

// SendImage uploads the local copy of img. Without one it falls back to sending the URL.
func (s *WhatsAppService) SendImage(ctx context.Context, to string, img models.Image, caption string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := canonicalPhone(to)
	if err != nil {
		return err
	}
	if img.Path == "" {
		if img.URL == "" {
			return errors.New("image has neither path nor URL")
		}
		return s.client.SendMessage(ctx, canonical, caption+"\n"+img.URL)
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return fmt.Errorf("read image %s: %w", img.Path, err)
	}
	return s.client.SendImage(ctx, canonical, data, http.DetectContentType(data), caption)
}
