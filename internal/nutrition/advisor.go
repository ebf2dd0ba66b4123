// Package nutrition builds the model prompts behind consultations, recipes,
// nutrition plans and recipe illustrations.
package nutrition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/NutriPipe/internal/flow"
	"github.com/BTreeMap/NutriPipe/internal/models"
)

// Generator is the language and image model. *genai.Client satisfies it.
type Generator interface {
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (models.Image, error)
}

// MissingIngredients is returned as recipe text when no ingredients were given.
const MissingIngredients = "❌ Please list the ingredients you have."

const consultSystemPrompt = "You are an experienced nutritionist with 10 years of practice. " +
	"Give detailed, evidence-based answers in plain language. " +
	"Take the user's age, weight and health conditions from their profile into account. " +
	"If the question is not about nutrition, politely suggest asking something else."

const recipeSystemPrompt = "You are a chef and a dietitian. Create one recipe from the ingredients the user lists. " +
	"Format:\n" +
	"1. 🍽️ Dish name (first line, on its own)\n" +
	"2. 📋 Ingredients\n" +
	"3. 🧑‍🍳 Preparation\n" +
	"4. 🏷️ Calories, protein, fat and carbohydrates per serving"

const planSystemPrompt = "You are an experienced dietitian. Build a personal daily nutrition plan: " +
	"a sample menu for one day, macronutrient distribution and practical eating advice. " +
	"Respect the user's health conditions and allergies."

// Advisor implements the conversation capabilities on top of a Generator.
type Advisor struct {
	gen Generator
}

var _ flow.Capabilities = (*Advisor)(nil)

// NewAdvisor returns an Advisor using gen.
func NewAdvisor(gen Generator) *Advisor {
	return &Advisor{gen: gen}
}

// Consult answers a free-form question, personalised when p is not nil.
func (a *Advisor) Consult(ctx context.Context, question string, p *models.UserProfile) (string, error) {
	user := question
	if p != nil {
		user = profileContext(*p) + "\n\nQuestion: " + question
	}
	slog.Debug("Advisor Consult", "personalised", p != nil, "question_length", len(question))
	return a.gen.GeneratePromptWithContext(ctx, consultSystemPrompt, user)
}

// Recipe creates a recipe from ingredients, honouring allergies and goal when known.
func (a *Advisor) Recipe(ctx context.Context, ingredients string, p *models.UserProfile) (string, error) {
	if strings.TrimSpace(ingredients) == "" {
		return MissingIngredients, nil
	}
	allergies, goal := models.NoneValue, "not specified"
	if p != nil {
		allergies = p.Allergies
		goal = p.Goal.Label()
	}
	user := fmt.Sprintf("Ingredients: %s\nAllergies: %s\nGoal: %s", ingredients, allergies, goal)
	return a.gen.GeneratePromptWithContext(ctx, recipeSystemPrompt, user)
}

// Plan builds a daily plan around the profile's estimated energy needs.
func (a *Advisor) Plan(ctx context.Context, p models.UserProfile) (string, error) {
	e := Estimate(p)
	user := fmt.Sprintf("%s\nBasal metabolic rate (BMR): %.0f kcal\nActivity factor: %.3g\nRecommended daily intake: %.0f kcal",
		profileContext(p), e.BMR, e.ActivityFactor, e.DailyCalories)
	slog.Debug("Advisor Plan", "goal", p.Goal, "daily_calories", int(e.DailyCalories))
	return a.gen.GeneratePromptWithContext(ctx, planSystemPrompt, user)
}

// Illustrate generates a photo of the dish named on the recipe's first line.
func (a *Advisor) Illustrate(ctx context.Context, recipe string) (models.Image, error) {
	title := flow.RecipeTitle(recipe)
	if title == "" {
		title = "a healthy home-cooked dish"
	}
	return a.gen.GenerateImage(ctx, ImagePrompt(title))
}

// ImagePrompt is the visual prompt for a dish photo.
func ImagePrompt(title string) string {
	return fmt.Sprintf("Appetizing photo of the dish '%s', studio lighting, high quality, vivid colors", title)
}

func profileContext(p models.UserProfile) string {
	var b strings.Builder
	b.WriteString("User profile:\n")
	fmt.Fprintf(&b, "Age: %d years\n", p.Age)
	fmt.Fprintf(&b, "Weight: %g kg\n", p.Weight)
	if p.Height > 0 {
		fmt.Fprintf(&b, "Height: %g cm\n", p.Height)
	}
	if p.Activity != "" {
		fmt.Fprintf(&b, "Activity: %s\n", p.Activity)
	}
	fmt.Fprintf(&b, "Goal: %s\n", p.Goal.Label())
	fmt.Fprintf(&b, "Chronic conditions: %s\n", p.Diseases)
	fmt.Fprintf(&b, "Allergies: %s", p.Allergies)
	return b.String()
}
