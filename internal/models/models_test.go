package models

import "testing"

func TestGoalLabelsRoundTrip(t *testing.T) {
	for _, label := range GoalLabels() {
		g, ok := GoalFromLabel(label)
		if !ok {
			t.Fatalf("GoalFromLabel(%q) not found", label)
		}
		if !g.IsValid() {
			t.Errorf("goal %q should be valid", g)
		}
		if g.Label() != label {
			t.Errorf("expected label %q, got %q", label, g.Label())
		}
	}
	if _, ok := GoalFromLabel("weight loss"); ok {
		t.Error("goal labels must match exactly")
	}
	if Goal("bulk").IsValid() {
		t.Error("unknown goal should be invalid")
	}
}

func TestActivityLevels(t *testing.T) {
	if len(ActivityLevels()) != 5 {
		t.Fatalf("expected five activity levels, got %d", len(ActivityLevels()))
	}
	if !ActivityModerate.IsValid() {
		t.Error("moderate should be valid")
	}
	if ActivityLevel("moderately active").IsValid() {
		t.Error("activity labels must match exactly")
	}
}

func TestHasAllergies(t *testing.T) {
	tests := []struct {
		allergies string
		want      bool
	}{
		{"none", false},
		{"None", false},
		{"", false},
		{"peanuts", true},
	}
	for _, tt := range tests {
		p := UserProfile{Allergies: tt.allergies}
		if got := p.HasAllergies(); got != tt.want {
			t.Errorf("HasAllergies(%q) = %v, want %v", tt.allergies, got, tt.want)
		}
	}
}

func TestInboundIsCommand(t *testing.T) {
	if !(Inbound{Text: "/start"}).IsCommand() {
		t.Error("/start should be a command")
	}
	if (Inbound{Text: "/"}).IsCommand() {
		t.Error("a bare slash is not a command")
	}
	if (Inbound{Text: "hello"}).IsCommand() {
		t.Error("plain text is not a command")
	}
}
