package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/whatsapp"
)

// recordingHandler tracks handled messages and per-identity concurrency.
type recordingHandler struct {
	mu        sync.Mutex
	seen      map[string][]string
	active    map[string]int
	overlap   bool
	delay     time.Duration
	failOn    string
	panicOn   string
	release   chan struct{}
	blockFrom string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: map[string][]string{}, active: map[string]int{}}
}

func (h *recordingHandler) Handle(_ context.Context, in models.Inbound) error {
	h.mu.Lock()
	h.active[in.From]++
	if h.active[in.From] > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.active[in.From]--
		h.seen[in.From] = append(h.seen[in.From], in.Text)
		h.mu.Unlock()
	}()

	if h.release != nil && in.From == h.blockFrom {
		<-h.release
	}
	time.Sleep(h.delay)
	if in.Text == h.panicOn {
		panic("boom")
	}
	if in.Text == h.failOn {
		return errors.New("handler failed")
	}
	return nil
}

func (h *recordingHandler) messages(from string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen[from]...)
}

func TestResponseHandler_PreservesPerIdentityOrder(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	h := newRecordingHandler()
	h.delay = time.Millisecond
	rh := NewResponseHandler(svc, h)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		for _, from := range []string{"+1 555 000 0001", "15550000002"} {
			if err := rh.ProcessResponse(ctx, models.Inbound{From: from, Text: fmt.Sprint(i)}); err != nil {
				t.Fatalf("ProcessResponse failed: %v", err)
			}
		}
	}
	rh.Wait()

	if h.overlap {
		t.Error("messages from one identity were handled concurrently")
	}
	for _, from := range []string{"15550000001", "15550000002"} {
		got := h.messages(from)
		if len(got) != 20 {
			t.Fatalf("%s: expected 20 messages, got %d", from, len(got))
		}
		for i, text := range got {
			if text != fmt.Sprint(i) {
				t.Fatalf("%s: message %d out of order: %v", from, i, got)
			}
		}
	}
	if rh.Pending() != 0 {
		t.Errorf("expected no pending queues, got %d", rh.Pending())
	}
}

func TestResponseHandler_IdentitiesDoNotBlockEachOther(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	h := newRecordingHandler()
	h.release = make(chan struct{})
	h.blockFrom = "111111"
	rh := NewResponseHandler(svc, h)
	ctx := context.Background()

	rh.ProcessResponse(ctx, models.Inbound{From: "111111", Text: "slow"})
	rh.ProcessResponse(ctx, models.Inbound{From: "222222", Text: "fast"})

	deadline := time.After(2 * time.Second)
	for len(h.messages("222222")) == 0 {
		select {
		case <-deadline:
			t.Fatal("second identity was blocked by the first")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(h.release)
	rh.Wait()
}

func TestResponseHandler_FailureSendsErrorMessage(t *testing.T) {
	client := whatsapp.NewMockClient()
	svc := NewWhatsAppService(client)
	h := newRecordingHandler()
	h.failOn = "bad"
	h.panicOn = "worse"
	rh := NewResponseHandler(svc, h)
	ctx := context.Background()

	rh.ProcessResponse(ctx, models.Inbound{From: "123456", Text: "bad"})
	rh.ProcessResponse(ctx, models.Inbound{From: "123456", Text: "worse"})
	rh.ProcessResponse(ctx, models.Inbound{From: "123456", Text: "fine"})
	rh.Wait()

	sent := client.Messages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 error replies, got %+v", sent)
	}
	for _, m := range sent {
		if m.Body != DefaultErrorMessage || m.To != "123456" {
			t.Errorf("unexpected error reply %+v", m)
		}
	}
	if got := h.messages("123456"); len(got) != 3 {
		t.Errorf("worker should survive failures, handled %v", got)
	}
}

func TestResponseHandler_RejectsInvalidSender(t *testing.T) {
	rh := NewResponseHandler(NewWhatsAppService(whatsapp.NewMockClient()), newRecordingHandler())
	if err := rh.ProcessResponse(context.Background(), models.Inbound{From: "abc"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestResponseHandler_StartConsumesChannel(t *testing.T) {
	client := whatsapp.NewMockClient()
	svc := NewWhatsAppService(client)
	h := newRecordingHandler()
	rh := NewResponseHandler(svc, h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	rh.Start(ctx)
	client.Deliver("15551234567", "hello")

	deadline := time.After(2 * time.Second)
	for len(h.messages("15551234567")) == 0 {
		select {
		case <-deadline:
			t.Fatal("message was not dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
