package flow

import "github.com/BTreeMap/NutriPipe/internal/models"

// User-facing replies. Kept in one place so transports and tests agree on wording.
const (
	MsgWelcome        = "👋 Hi! I'm your nutrition assistant. A few quick questions and I'll tailor my advice to you."
	MsgAskName        = "What's your name?"
	MsgAskAge         = "How old are you? (whole years, e.g. 30)"
	MsgAskWeight      = "What is your weight in kg? (e.g. 72.5)"
	MsgAskHeight      = "What is your height in cm? (e.g. 175)"
	MsgAskActivity    = "How active are you during a typical week?"
	MsgAskGoal        = "What's your goal? (type \"help\" to see what I can do)"
	MsgAskDiseases    = "Do you have any chronic conditions? List them, or write \"none\"."
	MsgAskAllergies   = "Any food allergies or intolerances? List them, or write \"none\"."
	MsgInvalidName    = "Your name can't be empty."
	MsgInvalidAge     = "Please send your age as a whole number."
	MsgInvalidWeight  = "Please send your weight as a number, e.g. 72.5"
	MsgInvalidHeight  = "Please send your height as a number, e.g. 175"
	MsgInvalidChoice  = "Please pick one of the buttons."
	MsgRegistered     = "✅ Registration complete! Ask me anything about nutrition, or pick an option below."
	MsgAlreadyReg     = "You're already registered. Pick an option below."
	MsgRegFailed      = "⚠️ Sorry, I couldn't save your profile. Please try /start again later."
	MsgAnswerNotSaved = "⚠️ Sorry, I couldn't save that answer. Please send it again."
	MsgCancelled      = "Registration cancelled. Send /start whenever you're ready."
	MsgNothingCancel  = "There's nothing to cancel."
	MsgFinishFirst    = "Let's finish registration first, or send /cancel to stop."
	MsgPleaseRegister = "Please register first with /start so I can personalize my answers."
	MsgUnknownCommand = "I don't know that command. Send /help to see what I can do."
	MsgAskQuestion    = "What would you like to ask? Send your question in the next message."
	MsgAskIngredients = "Which ingredients do you have? List them in the next message."
	MsgFallback       = "I'm not sure what you need. You can ask a question (end it with \"?\"), send /recipe with your ingredients, or /nutrition for a daily plan."
	MsgMealLogged     = "📝 Meal noted."
	MsgMealUsage      = "Send /meal followed by what you ate, e.g. /meal oatmeal with berries."
	MsgNoMeals        = "You haven't logged any meals yet."

	MsgMenu = "Here's what I can do:\n" +
		"• /ask <question> - nutrition consultation\n" +
		"• /nutrition - your daily calorie plan\n" +
		"• /recipe <ingredients> - a recipe with a picture\n" +
		"• /meal <what you ate> - log a meal, /meals to review\n" +
		"• /cancel - stop registration\n" +
		"You can also just type a question, or one of your goals (Weight loss, Muscle gain, Maintenance) for a plan."

	MsgWaterReminder = "💧 Don't forget to drink water!"
)

// Fixed apologies shown instead of raw provider or storage errors.
const (
	ApologyConsult = "⚠️ Sorry, I can't answer right now. Please try again in a few minutes."
	ApologyRecipe  = "⚠️ Sorry, I couldn't come up with a recipe right now. Please try again later."
	ApologyPlan    = "⚠️ Sorry, I couldn't build your nutrition plan right now. Please try again later."
	ApologyProfile = "⚠️ Sorry, I couldn't load your profile right now. Please try again later."
	ApologyMeals   = "⚠️ Sorry, I couldn't access your meal log right now."
)

// MenuChoices is the main keyboard; each button delivers a command.
func MenuChoices() []models.Choice {
	return []models.Choice{
		{Label: "📝 Register", Data: "/start"},
		{Label: "💬 Consultation", Data: "/ask"},
		{Label: "📊 Nutrition plan", Data: "/nutrition"},
		{Label: "🍳 Recipe", Data: "/recipe"},
		{Label: "❓ Help", Data: "/help"},
	}
}
