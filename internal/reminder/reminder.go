// Package reminder broadcasts the water reminder to every registered user.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Lister lists registered identities. store.ProfileStore satisfies it.
type Lister interface {
	ListIdentities(ctx context.Context) ([]string, error)
}

// Sender delivers one message. messaging.Service satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Tally counts the outcome of one sweep.
type Tally struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Dispatcher sends a fixed message to every identity in the store.
type Dispatcher struct {
	users   Lister
	out     Sender
	message string
}

// NewDispatcher returns a Dispatcher sending message.
func NewDispatcher(users Lister, out Sender, message string) *Dispatcher {
	return &Dispatcher{users: users, out: out, message: message}
}

// Sweep delivers the message to each identity independently. A failed
// delivery is counted and the sweep moves on; only a failed listing aborts it.
func (d *Dispatcher) Sweep(ctx context.Context) (Tally, error) {
	start := time.Now()
	ids, err := d.users.ListIdentities(ctx)
	if err != nil {
		slog.Error("Reminder Sweep list failed", "error", err)
		return Tally{}, fmt.Errorf("list identities: %w", err)
	}

	var t Tally
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			slog.Warn("Reminder Sweep interrupted", "error", err, "sent", t.Sent, "failed", t.Failed, "remaining", len(ids)-t.Sent-t.Failed)
			return t, err
		}
		if err := d.out.SendMessage(ctx, id, d.message); err != nil {
			t.Failed++
			slog.Warn("Reminder delivery failed", "error", err, "identity", id)
			continue
		}
		t.Sent++
	}
	slog.Info("Reminder Sweep completed", "sent", t.Sent, "failed", t.Failed, "duration", time.Since(start))
	return t, nil
}

// Run performs a sweep with a background context, for use as a scheduler job.
func (d *Dispatcher) Run() {
	if _, err := d.Sweep(context.Background()); err != nil {
		slog.Error("Reminder scheduled sweep failed", "error", err)
	}
}
