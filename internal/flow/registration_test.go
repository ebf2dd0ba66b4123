package flow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestRegistrationHappyPath(t *testing.T) {
	s, out := BeginRegistration("42", t0)
	if s.Step != StepName || !strings.Contains(out.Reply, MsgAskName) {
		t.Fatalf("unexpected start: step=%v reply=%q", s.Step, out.Reply)
	}

	answers := []struct {
		input string
		next  Step
	}{
		{" Anna ", StepAge},
		{"30", StepWeight},
		{"62,5", StepHeight},
		{"170.5", StepActivity},
		{"Moderately active", StepGoal},
		{"Weight loss", StepDiseases},
		{"нет", StepAllergies},
	}
	for _, a := range answers {
		s, out = Advance(s, a.input, t0)
		if out.Invalid || out.Commit {
			t.Fatalf("answer %q: unexpected outcome %+v", a.input, out)
		}
		if s.Step != a.next {
			t.Fatalf("answer %q: expected step %v, got %v", a.input, a.next, s.Step)
		}
	}

	s, out = Advance(s, "Peanuts", t0)
	if !out.Commit || s.Step != StepCommitted {
		t.Fatalf("expected commit, got step=%v outcome=%+v", s.Step, out)
	}
	want := models.UserProfile{
		Identity: "42", Name: " Anna ", Age: 30, Weight: 62.5, Height: 170.5,
		Activity: models.ActivityModerate, Goal: models.GoalWeightLoss,
		Diseases: "none", Allergies: "Peanuts",
	}
	if s.Draft != want {
		t.Errorf("draft mismatch:\n got  %+v\n want %+v", s.Draft, want)
	}
}

func TestRegistrationRejectsInvalidAnswers(t *testing.T) {
	tests := []struct {
		step  Step
		input string
	}{
		{StepName, "   "},
		{StepAge, "thirty"},
		{StepAge, "-5"},
		{StepAge, "30.5"},
		{StepAge, ""},
		{StepWeight, "abc"},
		{StepWeight, "1.2.3"},
		{StepWeight, "-70"},
		{StepHeight, "1,7,5"},
		{StepActivity, "sedentary"},
		{StepActivity, "Couch potato"},
		{StepGoal, "lose weight"},
	}
	for _, tt := range tests {
		s := RegistrationSession{Identity: "1", Step: tt.step}
		next, out := Advance(s, tt.input, t0)
		if !out.Invalid {
			t.Errorf("step %v input %q: expected Invalid", tt.step, tt.input)
		}
		if next.Step != tt.step {
			t.Errorf("step %v input %q: step moved to %v", tt.step, tt.input, next.Step)
		}
		if next.Draft != s.Draft {
			t.Errorf("step %v input %q: draft changed", tt.step, tt.input)
		}
	}
}

func TestRegistrationGoalHelpKeepsState(t *testing.T) {
	s := RegistrationSession{Identity: "1", Step: StepGoal}
	next, out := Advance(s, "HELP", t0)
	if next.Step != StepGoal || out.Invalid || out.Commit {
		t.Fatalf("help should not change state: step=%v outcome=%+v", next.Step, out)
	}
	if !strings.Contains(out.Reply, MsgMenu) {
		t.Errorf("expected menu in reply, got %q", out.Reply)
	}
	if len(out.Choices) != 3 {
		t.Errorf("expected goal keyboard, got %v", out.Choices)
	}
}

func TestRegistrationKeyboards(t *testing.T) {
	if p := (RegistrationSession{Step: StepActivity}).Prompt(); len(p.Choices) != 5 {
		t.Errorf("activity step should offer five buttons, got %d", len(p.Choices))
	}
	if p := (RegistrationSession{Step: StepAge}).Prompt(); len(p.Choices) != 0 {
		t.Errorf("age step should not offer buttons, got %v", p.Choices)
	}
}

func TestParseAge(t *testing.T) {
	if n, err := ParseAge("0"); err != nil || n != 0 {
		t.Errorf("ParseAge(0) = %d, %v", n, err)
	}
	if n, err := ParseAge(" 45 "); err != nil || n != 45 {
		t.Errorf("ParseAge(45) = %d, %v", n, err)
	}
	if _, err := ParseAge("99999999999999999999999"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected overflow to be a validation error, got %v", err)
	}
}

func TestParseMeasure(t *testing.T) {
	tests := map[string]float64{
		"70":   70,
		"70.5": 70.5,
		"70,5": 70.5,
		" 0 ":  0,
		"180.": 180,
		".5":   0.5,
	}
	for in, want := range tests {
		got, err := ParseMeasure(in)
		if err != nil || got != want {
			t.Errorf("ParseMeasure(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", ".", "7e2", "NaN", "Inf", "1 000"} {
		if _, err := ParseMeasure(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseMeasure(%q): expected ErrValidation, got %v", bad, err)
		}
	}
}

func TestNormalizeNone(t *testing.T) {
	for _, in := range []string{"none", "No", "NOTHING", "-", "Нет", "  "} {
		if got := normalizeNone(in); got != "none" {
			t.Errorf("normalizeNone(%q) = %q", in, got)
		}
	}
	if got := normalizeNone("Lactose"); got != "Lactose" {
		t.Errorf("expected verbatim text, got %q", got)
	}
}

func TestStepString(t *testing.T) {
	if StepHeight.String() != "height" || StepCommitted.String() != "committed" {
		t.Error("unexpected step names")
	}
	if Step(42).String() != "step(42)" {
		t.Errorf("unexpected out of range name %q", Step(42).String())
	}
}
