package messaging

import (
	"context"
	"testing"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/telegram"
)

func TestTelegramService_ValidateRecipient(t *testing.T) {
	svc := NewTelegramService(telegram.NewMockClient())
	for in, want := range map[string]string{"42": "42", " -100123 ": "-100123", "0042": "42"} {
		if got, err := svc.ValidateAndCanonicalizeRecipient(in); err != nil || got != want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, %v", in, got, err)
		}
	}
	for _, bad := range []string{"", "abc", "0", "+1 555"} {
		if _, err := svc.ValidateAndCanonicalizeRecipient(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestTelegramService_SendAndReceive(t *testing.T) {
	bot := telegram.NewMockClient()
	svc := NewTelegramService(bot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	choices := []models.Choice{{Label: "🍳 Recipe", Data: "/recipe"}}
	svc.SendChoices(ctx, "42", "Menu", choices)
	svc.SendImage(ctx, "42", models.Image{Path: "/tmp/a.png"}, "Omelette")
	svc.SendMessage(ctx, "42", "text")

	sent := bot.Messages()
	if len(sent) != 3 || sent[0].ChatID != 42 || len(sent[0].Choices) != 1 || sent[1].Photo == nil || sent[2].Body != "text" {
		t.Fatalf("unexpected sent messages %+v", sent)
	}

	bot.Deliver(models.Inbound{From: "42", Text: "/recipe", Kind: models.InboundButton})
	if in := receive(t, svc.Responses()); in.Text != "/recipe" || in.Kind != models.InboundButton {
		t.Errorf("unexpected inbound %+v", in)
	}
}
