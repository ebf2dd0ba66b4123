// Package flow implements the NutriPipe conversation: the registration
// questionnaire, the intent router and per-identity session state.
package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSessionTTL bounds how long an abandoned registration or pending flag survives.
const DefaultSessionTTL = 24 * time.Hour

// Flags are the one-shot hints left by a command that asked for more input.
type Flags struct {
	AwaitingRecipe       bool `json:"awaiting_recipe,omitempty"`
	AwaitingConsultation bool `json:"awaiting_consultation,omitempty"`
}

// Any reports whether a flag is set.
func (f Flags) Any() bool {
	return f.AwaitingRecipe || f.AwaitingConsultation
}

// StateManager stores transient per-identity conversation state.
type StateManager interface {
	// GetSession returns the active registration, or nil when there is none.
	GetSession(ctx context.Context, identity string) (*RegistrationSession, error)
	// SaveSession creates or replaces the registration for s.Identity.
	SaveSession(ctx context.Context, s RegistrationSession) error
	// DeleteSession removes the registration, if any.
	DeleteSession(ctx context.Context, identity string) error
	// SetFlags replaces the pending flags for identity.
	SetFlags(ctx context.Context, identity string, f Flags) error
	// TakeFlags returns the pending flags and clears them.
	TakeFlags(ctx context.Context, identity string) (Flags, error)
}

type memoryEntry struct {
	session      *RegistrationSession
	sessionUntil time.Time
	flags        Flags
	flagsUntil   time.Time
}

// MemoryStateManager keeps state in process memory with lazy TTL expiry.
type MemoryStateManager struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStateManager creates a MemoryStateManager. ttl <= 0 uses DefaultSessionTTL.
func NewMemoryStateManager(ttl time.Duration) *MemoryStateManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	slog.Debug("Creating MemoryStateManager", "ttl", ttl)
	return &MemoryStateManager{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStateManager) entry(identity string) *memoryEntry {
	e, ok := m.entries[identity]
	if !ok {
		e = &memoryEntry{}
		m.entries[identity] = e
	}
	now := m.now()
	if e.session != nil && now.After(e.sessionUntil) {
		slog.Debug("MemoryStateManager session expired", "identity", identity, "step", e.session.Step)
		e.session = nil
	}
	if e.flags.Any() && now.After(e.flagsUntil) {
		e.flags = Flags{}
	}
	return e
}

func (m *MemoryStateManager) GetSession(_ context.Context, identity string) (*RegistrationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(identity)
	if e.session == nil {
		return nil, nil
	}
	s := *e.session
	return &s, nil
}

func (m *MemoryStateManager) SaveSession(_ context.Context, s RegistrationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(s.Identity)
	e.session = &s
	e.sessionUntil = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryStateManager) DeleteSession(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(identity).session = nil
	m.prune(identity)
	return nil
}

func (m *MemoryStateManager) SetFlags(_ context.Context, identity string, f Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(identity)
	e.flags = f
	e.flagsUntil = m.now().Add(m.ttl)
	m.prune(identity)
	return nil
}

func (m *MemoryStateManager) TakeFlags(_ context.Context, identity string) (Flags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(identity)
	f := e.flags
	e.flags = Flags{}
	m.prune(identity)
	return f, nil
}

// Sweep drops expired entries. Safe to call from a timer.
func (m *MemoryStateManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id := range m.entries {
		m.entry(id)
		if m.prune(id) {
			removed++
		}
	}
	return removed
}

// prune deletes an empty entry; caller holds mu.
func (m *MemoryStateManager) prune(identity string) bool {
	if e, ok := m.entries[identity]; ok && e.session == nil && !e.flags.Any() {
		delete(m.entries, identity)
		return true
	}
	return false
}
