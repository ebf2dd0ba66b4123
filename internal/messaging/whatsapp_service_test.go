package messaging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/whatsapp"
)

// Ensure every transport implements Service
func TestServicesImplementService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
	var _ Service = (*TwilioService)(nil)
	var _ Service = (*TelegramService)(nil)
}

func TestWhatsAppService_SendMessageCanonicalizes(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.SendMessage(context.Background(), "+1 (555) 123-4567", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	sent := mockClient.Messages()
	if len(sent) != 1 || sent[0].To != "15551234567" {
		t.Fatalf("expected canonical recipient, got %+v", sent)
	}
	if err := svc.SendMessage(context.Background(), "12-34", "hello"); err == nil {
		t.Error("expected error for short number")
	}
}

func TestWhatsAppService_ChoicesRoundTrip(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	choices := []models.Choice{{Label: "Weight loss", Data: "Weight loss"}, {Label: "❓ Help", Data: "/help"}}
	if err := svc.SendChoices(ctx, "15551234567", "Pick one", choices); err != nil {
		t.Fatalf("SendChoices failed: %v", err)
	}
	body := mockClient.Messages()[0].Body
	if !strings.Contains(body, "1. Weight loss") || !strings.Contains(body, "2. ❓ Help") {
		t.Errorf("expected numbered list, got %q", body)
	}

	mockClient.Deliver("15551234567", " 2 ")
	in := receive(t, svc.Responses())
	if in.Text != "/help" || in.Kind != models.InboundButton {
		t.Errorf("expected numeric reply mapped to choice data, got %+v", in)
	}

	mockClient.Deliver("15551234567", "2")
	if in := receive(t, svc.Responses()); in.Text != "2" || in.Kind != models.InboundText {
		t.Errorf("choices should be forgotten after one reply, got %+v", in)
	}
}

func TestWhatsAppService_SendImage(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "img.png")
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendImage(ctx, "15551234567", models.Image{Path: path}, "Omelette"); err != nil {
		t.Fatalf("SendImage failed: %v", err)
	}
	if len(mockClient.SentImages) != 1 || mockClient.SentImages[0].MimeType != "image/png" || mockClient.SentImages[0].Caption != "Omelette" {
		t.Errorf("unexpected image %+v", mockClient.SentImages)
	}

	if err := svc.SendImage(ctx, "15551234567", models.Image{URL: "https://img.example/a.png"}, "Omelette"); err != nil {
		t.Fatalf("SendImage with URL failed: %v", err)
	}
	if last := mockClient.Messages(); !strings.Contains(last[len(last)-1].Body, "https://img.example/a.png") {
		t.Errorf("expected URL fallback, got %+v", last)
	}

	if err := svc.SendImage(ctx, "15551234567", models.Image{}, ""); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if in, ok := <-svc.Responses(); ok {
		t.Errorf("expected responses channel closed, got value %v", in)
	}
	if err := svc.SendMessage(context.Background(), "15551234567", "hi"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func receive(t *testing.T, ch <-chan models.Inbound) models.Inbound {
	t.Helper()
	select {
	case in := <-ch:
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
	return models.Inbound{}
}
