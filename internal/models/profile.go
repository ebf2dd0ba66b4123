package models

import (
	"strings"
	"time"
)

// Goal is the user's dietary objective.
type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
)

var goalLabels = []struct {
	goal  Goal
	label string
}{
	{GoalWeightLoss, "Weight loss"},
	{GoalMuscleGain, "Muscle gain"},
	{GoalMaintenance, "Maintenance"},
}

// Label returns the human readable label shown on keyboards.
func (g Goal) Label() string {
	for _, gl := range goalLabels {
		if gl.goal == g {
			return gl.label
		}
	}
	return string(g)
}

// IsValid reports whether g is one of the known goals.
func (g Goal) IsValid() bool {
	for _, gl := range goalLabels {
		if gl.goal == g {
			return true
		}
	}
	return false
}

// GoalFromLabel maps an exact keyboard label back to its Goal.
func GoalFromLabel(label string) (Goal, bool) {
	for _, gl := range goalLabels {
		if gl.label == label {
			return gl.goal, true
		}
	}
	return "", false
}

// GoalLabels lists the goal labels in keyboard order.
func GoalLabels() []string {
	labels := make([]string, 0, len(goalLabels))
	for _, gl := range goalLabels {
		labels = append(labels, gl.label)
	}
	return labels
}

// ActivityLevel is one of the five self-reported activity labels.
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "Sedentary"
	ActivityLight     ActivityLevel = "Lightly active"
	ActivityModerate  ActivityLevel = "Moderately active"
	ActivityVery      ActivityLevel = "Very active"
	ActivityExtreme   ActivityLevel = "Extremely active"
)

// ActivityLevels lists the activity labels in keyboard order.
func ActivityLevels() []ActivityLevel {
	return []ActivityLevel{ActivitySedentary, ActivityLight, ActivityModerate, ActivityVery, ActivityExtreme}
}

// IsValid reports whether a is one of the five labels.
func (a ActivityLevel) IsValid() bool {
	for _, l := range ActivityLevels() {
		if l == a {
			return true
		}
	}
	return false
}

// NoneValue is stored for diseases and allergies the user does not have.
const NoneValue = "none"

// UserProfile is the persisted result of a completed registration.
// Height and Activity may be zero for profiles created before those steps existed.
type UserProfile struct {
	Identity  string        `json:"identity"`
	Name      string        `json:"name"`
	Age       uint          `json:"age"`
	Weight    float64       `json:"weight"`
	Height    float64       `json:"height,omitempty"`
	Activity  ActivityLevel `json:"activity,omitempty"`
	Goal      Goal          `json:"goal"`
	Diseases  string        `json:"diseases"`
	Allergies string        `json:"allergies"`
	CreatedAt time.Time     `json:"created_at"`
}

// HasAllergies reports whether the profile lists any allergy.
func (p UserProfile) HasAllergies() bool {
	a := strings.TrimSpace(p.Allergies)
	return a != "" && !strings.EqualFold(a, NoneValue)
}

// MealLogEntry is one free-text meal note appended by a user.
type MealLogEntry struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
