package flow

import (
	"strings"
	"unicode"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// Intent is the single action chosen for a free-text message.
type Intent int

const (
	IntentRegister Intent = iota
	IntentRecipe
	IntentConsult
	IntentMenu
	IntentPlan
	IntentFallback
)

func (i Intent) String() string {
	switch i {
	case IntentRegister:
		return "register"
	case IntentRecipe:
		return "recipe"
	case IntentConsult:
		return "consult"
	case IntentMenu:
		return "menu"
	case IntentPlan:
		return "plan"
	default:
		return "fallback"
	}
}

// Route is the router's decision for one message.
type Route struct {
	Intent Intent
	// Goal overrides the stored goal for this reply only (IntentPlan).
	Goal models.Goal
}

// RouteInput is everything the router looks at. Flags must already have been
// taken from the state manager.
type RouteInput struct {
	Text       string
	Flags      Flags
	Registered bool
}

type rule struct {
	name  string
	match func(RouteInput) (Route, bool)
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{"unregistered", func(in RouteInput) (Route, bool) {
		return Route{Intent: IntentRegister}, !in.Registered
	}},
	{"awaiting recipe", func(in RouteInput) (Route, bool) {
		return Route{Intent: IntentRecipe}, in.Flags.AwaitingRecipe
	}},
	{"awaiting consultation", func(in RouteInput) (Route, bool) {
		return Route{Intent: IntentConsult}, in.Flags.AwaitingConsultation
	}},
	{"help", func(in RouteInput) (Route, bool) {
		return Route{Intent: IntentMenu}, strings.EqualFold(strings.TrimSpace(in.Text), "help")
	}},
	{"goal shortcut", func(in RouteInput) (Route, bool) {
		g, ok := models.GoalFromLabel(in.Text)
		return Route{Intent: IntentPlan, Goal: g}, ok
	}},
	{"question", func(in RouteInput) (Route, bool) {
		return Route{Intent: IntentConsult}, looksLikeQuestion(in.Text)
	}},
}

// RouteText picks the intent for a free-text message.
func RouteText(in RouteInput) Route {
	for _, r := range rules {
		if route, ok := r.match(in); ok {
			return route
		}
	}
	return Route{Intent: IntentFallback}
}

var interrogatives = []string{
	"what", "how", "why", "when", "where", "which", "who", "whom", "whose",
	"can", "could", "should", "would", "will", "shall", "may", "might",
	"is", "are", "am", "was", "were", "do", "does", "did",
}

func looksLikeQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range interrogatives {
		if !strings.HasPrefix(lower, w) {
			continue
		}
		rest := lower[len(w):]
		if rest == "" {
			return true
		}
		if r := []rune(rest)[0]; !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
