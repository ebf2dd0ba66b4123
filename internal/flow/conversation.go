package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/BTreeMap/NutriPipe/internal/store"
)

// Replier delivers outbound messages. messaging.Service satisfies it.
type Replier interface {
	SendMessage(ctx context.Context, to, body string) error
	SendChoices(ctx context.Context, to, body string, choices []models.Choice) error
	SendImage(ctx context.Context, to string, img models.Image, caption string) error
}

// Capabilities are the generation features the router can invoke.
// A nil profile means the user is not registered.
type Capabilities interface {
	Consult(ctx context.Context, question string, p *models.UserProfile) (string, error)
	Recipe(ctx context.Context, ingredients string, p *models.UserProfile) (string, error)
	Plan(ctx context.Context, p models.UserProfile) (string, error)
	Illustrate(ctx context.Context, recipe string) (models.Image, error)
}

// recentMeals is how many notes /meals shows.
const recentMeals = 10

// Conversation handles one inbound message at a time for an identity.
// Callers must not run Handle concurrently for the same identity.
type Conversation struct {
	store  store.ProfileStore
	state  StateManager
	caps   Capabilities
	out    Replier
	images bool
	now    func() time.Time
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithImages enables recipe illustrations.
func WithImages(enabled bool) ConversationOption {
	return func(c *Conversation) { c.images = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ConversationOption {
	return func(c *Conversation) { c.now = now }
}

// NewConversation wires the conversation to its collaborators.
func NewConversation(st store.ProfileStore, sm StateManager, caps Capabilities, out Replier, opts ...ConversationOption) *Conversation {
	c := &Conversation{store: st, state: sm, caps: caps, out: out, images: true, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes a single inbound message.
func (c *Conversation) Handle(ctx context.Context, in models.Inbound) error {
	slog.Debug("Conversation Handle invoked", "from", in.From, "kind", in.Kind, "command", in.IsCommand())

	sess, err := c.state.GetSession(ctx, in.From)
	if err != nil {
		slog.Error("Conversation GetSession failed, continuing without session", "error", err, "from", in.From)
	}
	if sess != nil {
		return c.handleRegistration(ctx, *sess, in)
	}

	flags, err := c.state.TakeFlags(ctx, in.From)
	if err != nil {
		slog.Error("Conversation TakeFlags failed", "error", err, "from", in.From)
	}

	if in.IsCommand() {
		name, args := splitCommand(in.Text)
		return c.handleCommand(ctx, in.From, name, args)
	}
	return c.handleText(ctx, in.From, in.Text, flags)
}

func (c *Conversation) handleRegistration(ctx context.Context, sess RegistrationSession, in models.Inbound) error {
	id := in.From
	if in.IsCommand() {
		name, _ := splitCommand(in.Text)
		switch name {
		case "cancel":
			if err := c.state.DeleteSession(ctx, id); err != nil {
				slog.Error("Conversation DeleteSession failed", "error", err, "from", id)
			}
			slog.Info("Registration cancelled", "from", id, "step", sess.Step)
			return c.reply(ctx, id, MsgCancelled, nil)
		case "start":
			p := sess.Prompt()
			return c.reply(ctx, id, p.Reply, p.Choices)
		default:
			p := sess.Prompt()
			return c.reply(ctx, id, MsgFinishFirst+"\n\n"+p.Reply, p.Choices)
		}
	}

	next, out := Advance(sess, in.Text, c.now())
	if !out.Commit {
		if out.Invalid {
			slog.Debug("Registration answer rejected", "from", id, "step", sess.Step)
		}
		if err := c.state.SaveSession(ctx, next); err != nil {
			slog.Error("Conversation SaveSession failed", "error", err, "from", id, "step", next.Step)
			p := sess.Prompt()
			return c.reply(ctx, id, MsgAnswerNotSaved+"\n\n"+p.Reply, p.Choices)
		}
		return c.reply(ctx, id, out.Reply, out.Choices)
	}

	profile := next.Draft
	profile.Identity = id
	profile.CreatedAt = c.now().UTC()
	createErr := c.store.CreateProfile(ctx, profile)
	if err := c.state.DeleteSession(ctx, id); err != nil {
		slog.Error("Conversation DeleteSession failed", "error", err, "from", id)
	}

	switch {
	case createErr == nil:
		slog.Info("Registration completed", "from", id, "goal", profile.Goal)
		return c.reply(ctx, id, MsgRegistered, MenuChoices())
	case errors.Is(createErr, store.ErrProfileExists):
		slog.Info("Registration hit existing profile", "from", id)
		return c.reply(ctx, id, MsgAlreadyReg, MenuChoices())
	default:
		slog.Error("Registration commit failed", "error", createErr, "from", id)
		return c.reply(ctx, id, MsgRegFailed, nil)
	}
}

func (c *Conversation) handleCommand(ctx context.Context, id, name, args string) error {
	slog.Debug("Conversation command", "from", id, "command", name, "has_args", args != "")
	switch name {
	case "start":
		if c.store.Exists(ctx, id) {
			return c.reply(ctx, id, MsgAlreadyReg, MenuChoices())
		}
		sess, out := BeginRegistration(id, c.now())
		if err := c.state.SaveSession(ctx, sess); err != nil {
			slog.Error("Conversation SaveSession failed", "error", err, "from", id)
			return c.reply(ctx, id, MsgRegFailed, nil)
		}
		slog.Info("Registration started", "from", id)
		return c.reply(ctx, id, out.Reply, out.Choices)

	case "ask":
		if args == "" {
			if !c.store.Exists(ctx, id) {
				return c.reply(ctx, id, MsgPleaseRegister, registerChoice())
			}
			return c.setFlagAndPrompt(ctx, id, Flags{AwaitingConsultation: true}, MsgAskQuestion)
		}
		p, err := c.optionalProfile(ctx, id)
		if err != nil {
			return c.reply(ctx, id, ApologyConsult, nil)
		}
		return c.consult(ctx, id, args, p)

	case "nutrition":
		return c.plan(ctx, id, "")

	case "recipe":
		if args == "" {
			if !c.store.Exists(ctx, id) {
				return c.reply(ctx, id, MsgPleaseRegister, registerChoice())
			}
			return c.setFlagAndPrompt(ctx, id, Flags{AwaitingRecipe: true}, MsgAskIngredients)
		}
		p, err := c.optionalProfile(ctx, id)
		if err != nil {
			return c.reply(ctx, id, ApologyRecipe, nil)
		}
		return c.recipe(ctx, id, args, p)

	case "help", "menu":
		return c.reply(ctx, id, MsgMenu, MenuChoices())

	case "cancel":
		return c.reply(ctx, id, MsgNothingCancel, nil)

	case "meal":
		return c.logMeal(ctx, id, args)

	case "meals":
		return c.listMeals(ctx, id)

	default:
		return c.reply(ctx, id, MsgUnknownCommand, nil)
	}
}

func (c *Conversation) handleText(ctx context.Context, id, text string, flags Flags) error {
	route := RouteText(RouteInput{Text: text, Flags: flags, Registered: c.store.Exists(ctx, id)})
	slog.Debug("Conversation routed text", "from", id, "intent", route.Intent)

	switch route.Intent {
	case IntentRegister:
		return c.reply(ctx, id, MsgPleaseRegister, registerChoice())
	case IntentRecipe:
		p, err := c.optionalProfile(ctx, id)
		if err != nil {
			return c.reply(ctx, id, ApologyRecipe, nil)
		}
		return c.recipe(ctx, id, text, p)
	case IntentConsult:
		p, err := c.optionalProfile(ctx, id)
		if err != nil {
			return c.reply(ctx, id, ApologyConsult, nil)
		}
		return c.consult(ctx, id, text, p)
	case IntentMenu:
		return c.reply(ctx, id, MsgMenu, MenuChoices())
	case IntentPlan:
		return c.plan(ctx, id, route.Goal)
	default:
		return c.reply(ctx, id, MsgFallback, MenuChoices())
	}
}

func (c *Conversation) consult(ctx context.Context, id, question string, p *models.UserProfile) error {
	answer, err := c.caps.Consult(ctx, question, p)
	if failed(answer, err) {
		slog.Error("Consultation failed", "error", err, "from", id)
		return c.reply(ctx, id, ApologyConsult, nil)
	}
	return c.reply(ctx, id, answer, nil)
}

func (c *Conversation) recipe(ctx context.Context, id, ingredients string, p *models.UserProfile) error {
	text, err := c.caps.Recipe(ctx, ingredients, p)
	if failed(text, err) {
		slog.Error("Recipe generation failed", "error", err, "from", id)
		return c.reply(ctx, id, ApologyRecipe, nil)
	}

	if c.images {
		img, err := c.caps.Illustrate(ctx, text)
		if err != nil {
			slog.Warn("Recipe illustration failed, sending text only", "error", err, "from", id)
		} else if err := c.out.SendImage(ctx, id, img, RecipeTitle(text)); err != nil {
			slog.Warn("Recipe image delivery failed", "error", err, "from", id)
		}
	}
	return c.reply(ctx, id, text, nil)
}

// plan builds the nutrition plan; a non-empty goal overrides the stored one
// for this reply only.
func (c *Conversation) plan(ctx context.Context, id string, goal models.Goal) error {
	p, err := c.store.GetProfile(ctx, id)
	if errors.Is(err, store.ErrProfileNotFound) {
		return c.reply(ctx, id, MsgPleaseRegister, registerChoice())
	}
	if err != nil {
		slog.Error("Plan profile load failed", "error", err, "from", id)
		return c.reply(ctx, id, ApologyPlan, nil)
	}
	view := *p
	if goal != "" {
		view.Goal = goal
	}
	text, err := c.caps.Plan(ctx, view)
	if failed(text, err) {
		slog.Error("Plan generation failed", "error", err, "from", id)
		return c.reply(ctx, id, ApologyPlan, nil)
	}
	return c.reply(ctx, id, text, nil)
}

func (c *Conversation) logMeal(ctx context.Context, id, text string) error {
	if !c.store.Exists(ctx, id) {
		return c.reply(ctx, id, MsgPleaseRegister, registerChoice())
	}
	if text == "" {
		return c.reply(ctx, id, MsgMealUsage, nil)
	}
	if err := c.store.AddMeal(ctx, models.MealLogEntry{Identity: id, Text: text, CreatedAt: c.now().UTC()}); err != nil {
		slog.Error("AddMeal failed", "error", err, "from", id)
		return c.reply(ctx, id, ApologyMeals, nil)
	}
	return c.reply(ctx, id, MsgMealLogged, nil)
}

func (c *Conversation) listMeals(ctx context.Context, id string) error {
	if !c.store.Exists(ctx, id) {
		return c.reply(ctx, id, MsgPleaseRegister, registerChoice())
	}
	meals, err := c.store.ListMeals(ctx, id, recentMeals)
	if err != nil {
		slog.Error("ListMeals failed", "error", err, "from", id)
		return c.reply(ctx, id, ApologyMeals, nil)
	}
	if len(meals) == 0 {
		return c.reply(ctx, id, MsgNoMeals, nil)
	}
	var b strings.Builder
	b.WriteString("Your recent meals:\n")
	for _, m := range meals {
		fmt.Fprintf(&b, "• %s - %s\n", m.CreatedAt.Format("Jan 2 15:04"), m.Text)
	}
	return c.reply(ctx, id, strings.TrimRight(b.String(), "\n"), nil)
}

func (c *Conversation) setFlagAndPrompt(ctx context.Context, id string, f Flags, prompt string) error {
	if err := c.state.SetFlags(ctx, id, f); err != nil {
		slog.Error("Conversation SetFlags failed", "error", err, "from", id)
	}
	return c.reply(ctx, id, prompt, nil)
}

// optionalProfile returns nil for unregistered users and an error only when
// the store failed.
func (c *Conversation) optionalProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	p, err := c.store.GetProfile(ctx, id)
	if errors.Is(err, store.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		slog.Error("Profile load failed", "error", err, "from", id)
		return nil, err
	}
	return p, nil
}

// reply sends text in chunks; the keyboard rides on the last chunk.
func (c *Conversation) reply(ctx context.Context, to, text string, choices []models.Choice) error {
	chunks := Chunk(text)
	for i, chunk := range chunks {
		var err error
		if i == len(chunks)-1 && len(choices) > 0 {
			err = c.out.SendChoices(ctx, to, chunk, choices)
		} else {
			err = c.out.SendMessage(ctx, to, chunk)
		}
		if err != nil {
			slog.Error("Conversation reply failed", "error", err, "to", to, "chunk", i+1, "chunks", len(chunks))
			return fmt.Errorf("send reply to %s: %w", to, err)
		}
	}
	return nil
}

func registerChoice() []models.Choice {
	return MenuChoices()[:1]
}

// failed reports whether a capability call should be replaced by an apology.
func failed(text string, err error) bool {
	if err != nil {
		return true
	}
	t := strings.TrimSpace(text)
	return t == "" || strings.HasPrefix(t, "⚠️") || strings.HasPrefix(t, "❌")
}

// splitCommand turns "/ask@bot what is x" into ("ask", "what is x").
func splitCommand(text string) (name, args string) {
	text = strings.TrimSpace(text)
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	name = strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(rest)
}

// RecipeTitle returns the first non-empty line of a recipe without markdown decoration.
func RecipeTitle(recipe string) string {
	for _, line := range strings.Split(recipe, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "#*_ ")
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "title:") {
			line = strings.TrimSpace(line[len("title:"):])
		}
		return line
	}
	return ""
}
