// Package whatsapp wraps the Whatsmeow client for the WhatsApp transport.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

const (
	// DefaultSQLitePath is the default whatsmeow session database.
	DefaultSQLitePath = "/var/lib/nutripipe/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID server for regular users.
	JIDSuffix = "s.whatsapp.net"
)

// ErrNotConnected is returned when the underlying client is missing.
var ErrNotConnected = errors.New("whatsapp client not initialized")

// MessageFunc receives inbound text messages. from is the sender's phone number in digits.
type MessageFunc func(from, text string, at time.Time)

// Sender sends WhatsApp messages (implemented by Client and MockClient).
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
	SendImage(ctx context.Context, to string, data []byte, mimeType, caption string) error
	// Subscribe registers fn for inbound messages and returns immediately.
	Subscribe(fn MessageFunc)
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow session database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // print the raw pairing code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow session database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) { o.QRPath = path }
}

// WithNumericCode prints the login code as text.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// Client wraps the Whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

// NewClient connects to WhatsApp, running the QR login flow when the device is not paired yet.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp NewClient options set", "DBDSN_set", cfg.DBDSN != "", "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultSQLitePath
	}
	dbDriver := store.DetectDSNType(dbDSN)
	if dbDriver == "sqlite3" && !strings.Contains(dbDSN, "foreign_keys") {
		slog.Warn("SQLite database for WhatsApp does not have foreign keys enabled; add '?_foreign_keys=on' to the DSN",
			"dsn_example", "file:"+dbDSN+"?_foreign_keys=on")
	}

	container, err := sqlstore.New(ctx, dbDriver, dbDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		slog.Error("WhatsApp sqlstore init failed", "error", err, "driver", dbDriver)
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID != nil {
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
		slog.Info("WhatsApp client connected")
		return &Client{waClient: waClient}, nil
	}

	slog.Info("WhatsApp login required; starting QR code flow")
	qrChan, _ := waClient.GetQRChannel(ctx)
	if err := waClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}
	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			slog.Info("WhatsApp login event", "event", evt.Event)
			continue
		}
		if cfg.NumericCode {
			fmt.Fprintln(writer, evt.Code)
		} else {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
		}
	}
	slog.Info("WhatsApp client paired and connected")
	return &Client{waClient: waClient}, nil
}

func (c *Client) ready() error {
	if c.waClient == nil || c.waClient.Store == nil {
		return ErrNotConnected
	}
	return nil
}

// SendMessage sends a text message to a phone number given in digits.
func (c *Client) SendMessage(ctx context.Context, to, body string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if to == "" || body == "" {
		return errors.New("recipient and body are required")
	}
	if _, err := c.waClient.SendMessage(ctx, types.NewJID(to, JIDSuffix), &waE2E.Message{Conversation: proto.String(body)}); err != nil {
		slog.Error("WhatsApp SendMessage failed", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("WhatsApp message sent", "to", to, "body_length", len(body))
	return nil
}

// SendImage uploads data to the WhatsApp media servers and sends it as an image message.
func (c *Client) SendImage(ctx context.Context, to string, data []byte, mimeType, caption string) error {
	if err := c.ready(); err != nil {
		return err
	}
	up, err := c.waClient.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		slog.Error("WhatsApp Upload failed", "error", err, "to", to, "size", len(data))
		return fmt.Errorf("failed to upload image for %s: %w", to, err)
	}
	msg := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Caption:       proto.String(caption),
		Mimetype:      proto.String(mimeType),
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
	}}
	if _, err := c.waClient.SendMessage(ctx, types.NewJID(to, JIDSuffix), msg); err != nil {
		slog.Error("WhatsApp SendImage failed", "error", err, "to", to)
		return fmt.Errorf("failed to send image to %s: %w", to, err)
	}
	return nil
}

// Subscribe forwards inbound direct text messages to fn.
func (c *Client) Subscribe(fn MessageFunc) {
	if c.waClient == nil {
		return
	}
	c.waClient.AddEventHandler(func(evt interface{}) {
		msg, ok := evt.(*events.Message)
		if !ok {
			return
		}
		if msg.Info.IsFromMe || msg.Info.IsGroup {
			return
		}
		text, ok := MessageText(msg.Message)
		if !ok {
			slog.Debug("WhatsApp ignoring non-text message", "from", msg.Info.Sender.User)
			return
		}
		fn(msg.Info.Sender.User, text, msg.Info.Timestamp)
	})
}

// Disconnect closes the websocket connection.
func (c *Client) Disconnect() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// MessageText extracts plain text from a WhatsApp message.
func MessageText(m *waE2E.Message) (string, bool) {
	switch {
	case m == nil:
		return "", false
	case m.Conversation != nil:
		return m.GetConversation(), true
	case m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != nil:
		return m.GetExtendedTextMessage().GetText(), true
	}
	return "", false
}

// MockClient records sent messages instead of talking to WhatsApp.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	SentImages   []SentImage
	Err          error
	handler      MessageFunc
}

// SentMessage is a text message captured by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// SentImage is an image captured by MockClient.
type SentImage struct {
	To       string
	Size     int
	MimeType string
	Caption  string
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockClient) SendImage(_ context.Context, to string, data []byte, mimeType, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentImages = append(m.SentImages, SentImage{To: to, Size: len(data), MimeType: mimeType, Caption: caption})
	return nil
}

func (m *MockClient) Subscribe(fn MessageFunc) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

// Deliver simulates an inbound message from a subscriber's point of view.
func (m *MockClient) Deliver(from, text string) {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()
	if fn != nil {
		fn(from, text, time.Now())
	}
}

// Messages returns a copy of the captured text messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
