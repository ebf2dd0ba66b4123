package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// choiceMemory emulates buttons on transports that only carry text. The last
// set of choices sent to a recipient is kept until their next message.
type choiceMemory struct {
	mu      sync.Mutex
	pending map[string][]models.Choice
}

func newChoiceMemory() *choiceMemory {
	return &choiceMemory{pending: make(map[string][]models.Choice)}
}

func (m *choiceMemory) remember(to string, choices []models.Choice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(choices) == 0 {
		delete(m.pending, to)
		return
	}
	m.pending[to] = append([]models.Choice(nil), choices...)
}

// resolve turns a raw reply into an Inbound. A number or exact label matching
// a pending choice becomes a button press carrying the choice data.
func (m *choiceMemory) resolve(in models.Inbound) models.Inbound {
	m.mu.Lock()
	choices, ok := m.pending[in.From]
	delete(m.pending, in.From)
	m.mu.Unlock()
	if !ok {
		return in
	}

	text := strings.TrimSpace(in.Text)
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(choices) {
		in.Text, in.Kind = choices[n-1].Data, models.InboundButton
		return in
	}
	for _, c := range choices {
		if strings.EqualFold(text, c.Label) {
			in.Text, in.Kind = c.Data, models.InboundButton
			return in
		}
	}
	return in
}

// renderChoices appends a numbered list of labels to body.
func renderChoices(body string, choices []models.Choice) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Label)
	}
	b.WriteString("\n\nReply with a number.")
	return b.String()
}
