package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/models"
)

const systemPrompt = "You are a helpful customer support agent. " +
	"Write a concise, friendly reply to the customer's request. " +
	"Do not invent order numbers, account details, or policies."

// Completer is the one verb the generator needs from the language model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator turns a ticket into a suggested reply. A failed completion is
// absorbed into an empty string, which the pipeline treats as "no response
// produced" and which in turn suppresses the email step.
type Generator struct {
	completer Completer
	logger    *logging.Logger
}

func NewGenerator(completer Completer, logger *logging.Logger) *Generator {
	return &Generator{completer: completer, logger: logger}
}

// GenerateReply builds the prompt and runs one completion. Never returns
// an error; the empty string signals failure or an empty completion.
func (g *Generator) GenerateReply(ctx context.Context, t models.Ticket, customer models.Customer, kbContext map[string]any) string {
	prompt := BuildPrompt(t, customer, kbContext)

	text, err := g.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		g.logger.LogError("reply generation failed", err, "ticket_id", t.ID)
		return ""
	}

	return strings.TrimSpace(text)
}

// BuildPrompt renders the fixed prompt template: customer identity, ticket
// subject, the full conversation so far, and the serialized knowledge-base
// context.
func BuildPrompt(t models.Ticket, customer models.Customer, kbContext map[string]any) string {
	var bodies []string
	for _, m := range t.Messages {
		if content := m.Content(); content != "" {
			bodies = append(bodies, content)
		}
	}

	contextJSON, err := json.Marshal(kbContext)
	if err != nil {
		contextJSON = []byte("{}")
	}

	return fmt.Sprintf(
		"Customer name: %s\nCustomer email: %s\nSubject: %s\n\nCustomer messages:\n%s\n\nKnowledge base context:\n%s",
		customer.Name,
		customer.Email,
		t.Subject,
		strings.Join(bodies, "\n---\n"),
		contextJSON,
	)
}
