package nutrition

import "github.com/BTreeMap/NutriPipe/internal/models"

// DefaultHeightCM stands in for the height of profiles stored before height was asked.
const DefaultHeightCM = 170

var activityFactors = map[models.ActivityLevel]float64{
	models.ActivitySedentary: 1.2,
	models.ActivityLight:     1.375,
	models.ActivityModerate:  1.55,
	models.ActivityVery:      1.725,
	models.ActivityExtreme:   1.9,
}

// Energy is the estimated daily energy need of a profile.
type Energy struct {
	BMR            float64
	ActivityFactor float64
	DailyCalories  float64
}

// BMR is the Mifflin-St Jeor basal metabolic rate with the male constant.
func BMR(weightKG, heightCM float64, age uint) float64 {
	return 10*weightKG + 6.25*heightCM - 5*float64(age) + 5
}

// ActivityFactor maps an activity level to its multiplier; unknown levels count as sedentary.
func ActivityFactor(a models.ActivityLevel) float64 {
	if f, ok := activityFactors[a]; ok {
		return f
	}
	return 1.2
}

// Estimate computes BMR and daily calories for p.
func Estimate(p models.UserProfile) Energy {
	height := p.Height
	if height <= 0 {
		height = DefaultHeightCM
	}
	bmr := BMR(p.Weight, height, p.Age)
	f := ActivityFactor(p.Activity)
	return Energy{BMR: bmr, ActivityFactor: f, DailyCalories: bmr * f}
}
