// Package messaging adapts chat transports (Telegram, WhatsApp, Twilio) to a
// single Service and dispatches inbound messages to the conversation in order.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size of the inbound channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long a transport waits on a full inbound channel.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Each transport has its own identity format.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message.
	SendMessage(ctx context.Context, to, body string) error

	// SendChoices sends a message with a set of quick-reply choices. Transports
	// without native buttons render a numbered list and map numeric replies back.
	SendChoices(ctx context.Context, to, body string, choices []models.Choice) error

	// SendImage sends an image with a caption.
	SendImage(ctx context.Context, to string, img models.Image, caption string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the Responses channel.
	Stop() error

	// Responses returns a channel of inbound user messages.
	Responses() <-chan models.Inbound
}

// canonicalPhone strips everything but digits and requires at least six of them.
func canonicalPhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", &RecipientError{Recipient: recipient, Reason: "no digits found"}
	}
	if len(canonical) < 6 {
		return "", &RecipientError{Recipient: recipient, Reason: "too short (minimum 6 digits required)"}
	}
	return canonical, nil
}

// RecipientError reports an identity a transport cannot address.
type RecipientError struct {
	Recipient string
	Reason    string
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("invalid recipient %q: %s", e.Recipient, e.Reason)
}
