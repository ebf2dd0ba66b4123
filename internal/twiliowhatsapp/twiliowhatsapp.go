// Package twiliowhatsapp wraps the Twilio REST API for the WhatsApp transport.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MaxBodyRunes is the longest WhatsApp body Twilio accepts.
const MaxBodyRunes = 1600

// Sender sends WhatsApp messages through Twilio (implemented by Client and MockClient).
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to, mediaURL, caption string) error
}

// Opts holds the Twilio credentials and sender number.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string // "whatsapp:+1234567890"
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps the Twilio REST client.
type Client struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewClient validates the options and builds a REST client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, errors.New("fromWhats number must be provided")
	}
	return &Client{
		client:    twilio.NewRestClientWithParams(twilio.ClientParams{Username: cfg.AccountSID, Password: cfg.AuthToken}),
		fromWhats: cfg.FromWhats,
	}, nil
}

// SendMessage sends body to the number to (digits only), split into Twilio-sized parts.
func (c *Client) SendMessage(_ context.Context, to, body string) error {
	for i, part := range SplitBody(body) {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo("whatsapp:+" + to)
		params.SetFrom(c.fromWhats)
		params.SetBody(part)
		if _, err := c.client.Api.CreateMessage(params); err != nil {
			slog.Error("Twilio SendMessage failed", "to", to, "part", i+1, "error", err)
			return fmt.Errorf("failed to send message to %s: %w", to, err)
		}
	}
	slog.Debug("Twilio message sent", "to", to, "body_length", len(body))
	return nil
}

// SendMedia sends a publicly reachable media URL with an optional caption.
func (c *Client) SendMedia(_ context.Context, to, mediaURL, caption string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom(c.fromWhats)
	params.SetMediaUrl([]string{mediaURL})
	if caption != "" {
		params.SetBody(caption)
	}
	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendMedia failed", "to", to, "error", err)
		return fmt.Errorf("failed to send media to %s: %w", to, err)
	}
	return nil
}

// SplitBody cuts body into parts of at most MaxBodyRunes runes.
func SplitBody(body string) []string {
	runes := []rune(body)
	if len(runes) <= MaxBodyRunes {
		return []string{body}
	}
	var parts []string
	for len(runes) > 0 {
		n := min(MaxBodyRunes, len(runes))
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}

// MockClient records messages instead of calling Twilio.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

// SentMessage is a message captured by MockClient. MediaURL is empty for text.
type SentMessage struct {
	To       string
	Body     string
	MediaURL string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(_ context.Context, to, body string) error {
	return m.record(SentMessage{To: to, Body: body})
}

func (m *MockClient) SendMedia(_ context.Context, to, mediaURL, caption string) error {
	return m.record(SentMessage{To: to, Body: caption, MediaURL: mediaURL})
}

func (m *MockClient) record(s SentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, s)
	return nil
}

// Messages returns a copy of the captured messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
