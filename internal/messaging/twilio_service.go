package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/twiliowhatsapp"
	twilioClient "github.com/twilio/twilio-go/client"
)

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through TwilioWebhookHandler.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	inbox     *inbox
	choices   *choiceMemory
	validator *twilioClient.RequestValidator
	hookURL   string
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithSignatureValidation rejects webhook calls whose X-Twilio-Signature does
// not match publicURL signed with authToken.
func WithSignatureValidation(authToken, publicURL string) TwilioOption {
	return func(s *TwilioService) {
		v := twilioClient.NewRequestValidator(authToken)
		s.validator = &v
		s.hookURL = publicURL
	}
}

// NewTwilioService creates a new TwilioService around client.
func NewTwilioService(client twiliowhatsapp.Sender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{client: client, inbox: newInbox("TwilioService"), choices: newChoiceMemory()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndCanonicalizeRecipient strips non-digits and requires at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalPhone(recipient)
	if err == nil && canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, err
}

// Start is a no-op; inbound traffic arrives through the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

func (s *TwilioService) Stop() error {
	s.inbox.close()
	return nil
}

func (s *TwilioService) Responses() <-chan models.Inbound {
	return s.inbox.ch
}

func (s *TwilioService) SendMessage(ctx context.Context, to, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

func (s *TwilioService) SendChoices(ctx context.Context, to, body string, choices []models.Choice) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	s.choices.remember(canonical, choices)
	return s.client.SendMessage(ctx, canonical, renderChoices(body, choices))
}

// SendImage sends img.URL as media; Twilio fetches it, so a local path alone is not enough.
func (s *TwilioService) SendImage(ctx context.Context, to string, img models.Image, caption string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if img.URL == "" {
		return fmt.Errorf("twilio needs a public image URL, got path %q", img.Path)
	}
	return s.client.SendMedia(ctx, canonical, img.URL, caption)
}

// TwilioWebhookHandler handles inbound Twilio webhook requests and emits them on Responses().
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Validate(s.hookURL, params, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("Twilio webhook signature mismatch", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	from, body := r.FormValue("From"), r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	canonical, err := canonicalPhone(from)
	if err != nil {
		slog.Warn("Twilio webhook sender rejected", "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}
	if s.inbox.isStopped() {
		http.Error(w, "Service stopped", http.StatusServiceUnavailable)
		return
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", canonical, "body_length", len(body))
	s.inbox.emit(s.choices.resolve(models.Inbound{From: canonical, Text: body, Kind: models.InboundText, Time: time.Now()}))

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
