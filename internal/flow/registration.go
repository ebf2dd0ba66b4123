package flow

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// Step is the registration question the user is currently answering.
type Step int

const (
	StepName Step = iota
	StepAge
	StepWeight
	StepHeight
	StepActivity
	StepGoal
	StepDiseases
	StepAllergies
	StepCommitted
)

var stepNames = [...]string{"name", "age", "weight", "height", "activity", "goal", "diseases", "allergies", "committed"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// ErrValidation marks an answer that does not fit the current step.
var ErrValidation = errors.New("invalid answer")

// RegistrationSession is the in-progress questionnaire for one identity.
// Draft is only copied to the profile store once every step is answered.
type RegistrationSession struct {
	Identity  string             `json:"identity"`
	Step      Step               `json:"step"`
	Draft     models.UserProfile `json:"draft"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Outcome is what a registration step produced.
type Outcome struct {
	Reply   string
	Choices []models.Choice
	// Invalid is set when the answer was rejected and the step repeats.
	Invalid bool
	// Commit is set once the last answer was accepted; Draft is complete.
	Commit bool
}

// BeginRegistration starts a fresh session at the name step.
func BeginRegistration(identity string, now time.Time) (RegistrationSession, Outcome) {
	s := RegistrationSession{
		Identity:  identity,
		Step:      StepName,
		Draft:     models.UserProfile{Identity: identity},
		UpdatedAt: now,
	}
	return s, Outcome{Reply: MsgWelcome + "\n\n" + MsgAskName}
}

// Prompt returns the question for the session's current step.
func (s RegistrationSession) Prompt() Outcome {
	return promptFor(s.Step)
}

// Advance applies one answer to the session. It never performs I/O; the
// returned session replaces the old one.
func Advance(s RegistrationSession, input string, now time.Time) (RegistrationSession, Outcome) {
	next := s
	next.UpdatedAt = now

	switch s.Step {
	case StepName:
		if strings.TrimSpace(input) == "" {
			return s, reprompt(MsgInvalidName, StepName)
		}
		next.Draft.Name = input

	case StepAge:
		age, err := ParseAge(input)
		if err != nil {
			return s, reprompt(MsgInvalidAge, StepAge)
		}
		next.Draft.Age = age

	case StepWeight:
		w, err := ParseMeasure(input)
		if err != nil {
			return s, reprompt(MsgInvalidWeight, StepWeight)
		}
		next.Draft.Weight = w

	case StepHeight:
		h, err := ParseMeasure(input)
		if err != nil {
			return s, reprompt(MsgInvalidHeight, StepHeight)
		}
		next.Draft.Height = h

	case StepActivity:
		a := models.ActivityLevel(input)
		if !a.IsValid() {
			return s, reprompt(MsgInvalidChoice, StepActivity)
		}
		next.Draft.Activity = a

	case StepGoal:
		if strings.EqualFold(strings.TrimSpace(input), "help") {
			return s, Outcome{Reply: MsgMenu + "\n\n" + MsgAskGoal, Choices: goalChoices()}
		}
		g, ok := models.GoalFromLabel(input)
		if !ok {
			return s, reprompt(MsgInvalidChoice, StepGoal)
		}
		next.Draft.Goal = g

	case StepDiseases:
		next.Draft.Diseases = normalizeNone(input)

	case StepAllergies:
		next.Draft.Allergies = normalizeNone(input)

	default:
		return s, Outcome{Commit: true}
	}

	next.Step = s.Step + 1
	if next.Step == StepCommitted {
		return next, Outcome{Commit: true}
	}
	return next, promptFor(next.Step)
}

// ParseAge accepts a non-negative integer written with digits only.
func ParseAge(input string) (uint, error) {
	s := strings.TrimSpace(input)
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, fmt.Errorf("%w: age %q", ErrValidation, input)
	}
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: age %q", ErrValidation, input)
	}
	return uint(n), nil
}

// ParseMeasure accepts a non-negative decimal with either '.' or ',' as separator.
func ParseMeasure(input string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return 0, fmt.Errorf("%w: measure %q", ErrValidation, input)
		}
	}
	if digits == 0 || dots > 1 {
		return 0, fmt.Errorf("%w: measure %q", ErrValidation, input)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: measure %q", ErrValidation, input)
	}
	return f, nil
}

var noneWords = map[string]bool{"none": true, "no": true, "nothing": true, "-": true, "нет": true, "": true}

func normalizeNone(input string) string {
	if noneWords[strings.ToLower(strings.TrimSpace(input))] {
		return models.NoneValue
	}
	return input
}

func promptFor(step Step) Outcome {
	switch step {
	case StepName:
		return Outcome{Reply: MsgAskName}
	case StepAge:
		return Outcome{Reply: MsgAskAge}
	case StepWeight:
		return Outcome{Reply: MsgAskWeight}
	case StepHeight:
		return Outcome{Reply: MsgAskHeight}
	case StepActivity:
		return Outcome{Reply: MsgAskActivity, Choices: activityChoices()}
	case StepGoal:
		return Outcome{Reply: MsgAskGoal, Choices: goalChoices()}
	case StepDiseases:
		return Outcome{Reply: MsgAskDiseases}
	case StepAllergies:
		return Outcome{Reply: MsgAskAllergies}
	}
	return Outcome{}
}

func reprompt(msg string, step Step) Outcome {
	o := promptFor(step)
	o.Reply = msg + "\n" + o.Reply
	o.Invalid = true
	return o
}

func activityChoices() []models.Choice {
	levels := models.ActivityLevels()
	choices := make([]models.Choice, 0, len(levels))
	for _, l := range levels {
		choices = append(choices, models.Choice{Label: string(l), Data: string(l)})
	}
	return choices
}

func goalChoices() []models.Choice {
	labels := models.GoalLabels()
	choices := make([]models.Choice, 0, len(labels))
	for _, l := range labels {
		choices = append(choices, models.Choice{Label: l, Data: l})
	}
	return choices
}
