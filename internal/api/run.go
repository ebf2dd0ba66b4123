package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/NutriPipe/internal/config"
	"github.com/BTreeMap/NutriPipe/internal/flow"
	"github.com/BTreeMap/NutriPipe/internal/genai"
	"github.com/BTreeMap/NutriPipe/internal/lockfile"
	"github.com/BTreeMap/NutriPipe/internal/messaging"
	"github.com/BTreeMap/NutriPipe/internal/nutrition"
	"github.com/BTreeMap/NutriPipe/internal/reminder"
	"github.com/BTreeMap/NutriPipe/internal/scheduler"
	"github.com/BTreeMap/NutriPipe/internal/store"
	"github.com/BTreeMap/NutriPipe/internal/telegram"
	"github.com/BTreeMap/NutriPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/NutriPipe/internal/whatsapp"
)

// sessionSweepSchedule prunes expired in-memory registration sessions.
const sessionSweepSchedule = "*/15 * * * *"

// Transport is an opened messaging service plus its optional webhook and
// the function that disconnects it.
type Transport struct {
	Service messaging.Service
	Webhook http.HandlerFunc
	Close   func()
}

// OpenStore opens the profile store configured by cfg.
func OpenStore(cfg config.Config) (store.ProfileStore, error) {
	fc, err := cfg.Cipher()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreDSN(), fc)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	slog.Debug("Profile store opened", "driver", store.DetectDSNType(cfg.StoreDSN()))
	return st, nil
}

// OpenTransport connects the messaging transport selected by cfg.Transport.
func OpenTransport(ctx context.Context, cfg config.Config) (*Transport, error) {
	switch cfg.Transport {
	case config.TransportTelegram:
		bot, err := telegram.NewClient(cfg.TelegramToken)
		if err != nil {
			return nil, err
		}
		return &Transport{Service: messaging.NewTelegramService(bot), Close: func() {}}, nil

	case config.TransportWhatsApp:
		var opts []whatsapp.Option
		opts = append(opts, whatsapp.WithDBDSN(cfg.WhatsAppDSN))
		if cfg.WhatsAppQROutput != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(cfg.WhatsAppQROutput))
		}
		if cfg.WhatsAppNumeric {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		wa, err := whatsapp.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return &Transport{Service: messaging.NewWhatsAppService(wa), Close: wa.Disconnect}, nil

	case config.TransportTwilio:
		tw, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
			twiliowhatsapp.WithFromWhats(cfg.TwilioFromNumber),
		)
		if err != nil {
			return nil, err
		}
		var opts []messaging.TwilioOption
		if cfg.TwilioWebhookURL != "" {
			opts = append(opts, messaging.WithSignatureValidation(cfg.TwilioAuthToken, cfg.TwilioWebhookURL))
		} else {
			slog.Warn("TWILIO_WEBHOOK_URL not set, webhook signatures are not verified")
		}
		svc := messaging.NewTwilioService(tw, opts...)
		return &Transport{Service: svc, Webhook: svc.TwilioWebhookHandler, Close: func() {}}, nil
	}
	return nil, fmt.Errorf("%w: unknown TRANSPORT %q", config.ErrInvalidConfig, cfg.Transport)
}

// Run wires every component from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(cfg.StateDir, cfg.Transport)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Profile store close failed", "error", err)
		}
	}()

	sched := scheduler.NewScheduler()

	var sm flow.StateManager
	if cfg.RedisURL != "" {
		rsm, err := flow.NewRedisStateManager(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return err
		}
		defer rsm.Close()
		sm = rsm
	} else {
		msm := flow.NewMemoryStateManager(cfg.SessionTTL)
		if err := sched.AddJob("session-sweep", sessionSweepSchedule, func() {
			if n := msm.Sweep(); n > 0 {
				slog.Debug("Expired sessions pruned", "count", n)
			}
		}); err != nil {
			return err
		}
		sm = msm
	}

	genaiOpts := []genai.Option{
		genai.WithAPIKey(cfg.OpenAIKey),
		genai.WithModel(cfg.OpenAIModel),
		genai.WithImageDir(cfg.ImageDir),
	}
	if cfg.OpenAIDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(cfg.StateDir))
	}
	gen, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	tr, err := OpenTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	conv := flow.NewConversation(st, sm, nutrition.NewAdvisor(gen), tr.Service, flow.WithImages(cfg.ImagesEnabled))
	rh := messaging.NewResponseHandler(tr.Service, conv)

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	rh.Start(workCtx)
	if err := tr.Service.Start(workCtx); err != nil {
		return fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}

	dispatcher := reminder.NewDispatcher(st, tr.Service, cfg.ReminderMessage)
	if err := sched.AddJob("water-reminder", cfg.ReminderSchedule, dispatcher.Run); err != nil {
		return err
	}
	sched.Start()

	apiOpts := []Option{
		WithAddr(cfg.APIAddr),
		WithJWTSecret(cfg.APIJWTSecret),
		WithCORSOrigins(cfg.APICORSOrigins),
		WithQueueStats(rh),
	}
	if tr.Webhook != nil {
		apiOpts = append(apiOpts, WithTwilioWebhook(tr.Webhook))
	}
	srv := NewServer(st, dispatcher, apiOpts...)
	errc := srv.Start()

	slog.Info("NutriPipe running", "transport", cfg.Transport, "api_addr", cfg.APIAddr, "reminder_schedule", cfg.ReminderSchedule)
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown requested")
	case err, ok := <-errc:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	if err := tr.Service.Stop(); err != nil {
		slog.Error("Transport stop failed", "error", err)
	}
	drained := make(chan struct{})
	go func() {
		rh.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown grace elapsed with messages still in flight", "pending", rh.Pending())
		cancelWork()
	}
	sched.Stop(shutdownCtx)
	return runErr
}
