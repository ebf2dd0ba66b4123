package flow

import (
	"context"
	"sync"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// NewMockStateManager creates an in-memory state manager for testing
func NewMockStateManager() StateManager {
	return NewMemoryStateManager(DefaultSessionTTL)
}

// SentReply is one message captured by RecordingReplier.
type SentReply struct {
	To      string
	Body    string
	Choices []models.Choice
	Image   *models.Image
}

// RecordingReplier captures outbound messages instead of sending them.
type RecordingReplier struct {
	mu      sync.Mutex
	Replies []SentReply
	Err     error
}

func (r *RecordingReplier) SendMessage(_ context.Context, to, body string) error {
	return r.record(SentReply{To: to, Body: body})
}

func (r *RecordingReplier) SendChoices(_ context.Context, to, body string, choices []models.Choice) error {
	return r.record(SentReply{To: to, Body: body, Choices: choices})
}

func (r *RecordingReplier) SendImage(_ context.Context, to string, img models.Image, caption string) error {
	return r.record(SentReply{To: to, Body: caption, Image: &img})
}

func (r *RecordingReplier) record(s SentReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Replies = append(r.Replies, s)
	return nil
}

// Last returns the most recent reply, or the zero value.
func (r *RecordingReplier) Last() SentReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Replies) == 0 {
		return SentReply{}
	}
	return r.Replies[len(r.Replies)-1]
}

// Reset drops captured replies.
func (r *RecordingReplier) Reset() {
	r.mu.Lock()
	r.Replies = nil
	r.mu.Unlock()
}

// StubCapabilities returns canned generation results and records calls.
type StubCapabilities struct {
	mu             sync.Mutex
	Answer         string
	RecipeText     string
	PlanText       string
	Image          models.Image
	Err            error
	ImageErr       error
	Calls          []string
	LastGoal       models.Goal
	LastInput      string
	LastHadProfile bool
}

func (s *StubCapabilities) note(call, input string, p *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, call)
	s.LastInput = input
	s.LastHadProfile = p != nil
	if p != nil {
		s.LastGoal = p.Goal
	}
}

func (s *StubCapabilities) Consult(_ context.Context, q string, p *models.UserProfile) (string, error) {
	s.note("consult", q, p)
	return s.Answer, s.Err
}

func (s *StubCapabilities) Recipe(_ context.Context, ingredients string, p *models.UserProfile) (string, error) {
	s.note("recipe", ingredients, p)
	return s.RecipeText, s.Err
}

func (s *StubCapabilities) Plan(_ context.Context, p models.UserProfile) (string, error) {
	s.note("plan", "", &p)
	return s.PlanText, s.Err
}

func (s *StubCapabilities) Illustrate(_ context.Context, _ string) (models.Image, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, "illustrate")
	s.mu.Unlock()
	return s.Image, s.ImageErr
}
