package messaging

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// inbox owns a service's inbound channel. Sends hold the read lock so close
// never races a send.
type inbox struct {
	mu      sync.RWMutex
	stopped bool
	ch      chan models.Inbound
	name    string
}

func newInbox(name string) *inbox {
	return &inbox{ch: make(chan models.Inbound, DefaultChannelBufferSize), name: name}
}

// emit queues in, dropping it if the service is stopped or the channel stays full.
func (b *inbox) emit(in models.Inbound) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		slog.Warn(b.name+" dropping inbound message (service stopped)", "from", in.From)
		return false
	}
	select {
	case b.ch <- in:
		slog.Debug(b.name+" inbound message forwarded", "from", in.From, "kind", in.Kind)
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(b.name+" responses channel blocked, dropping message", "from", in.From, "timeout", DefaultChannelTimeout)
		return false
	}
}

func (b *inbox) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// close is idempotent.
func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.ch)
	slog.Info(b.name + " stopped and channel closed")
}
