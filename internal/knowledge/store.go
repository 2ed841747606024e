// Package knowledge is a placeholder for a future retrieval system. The
// context it returns is static and interactions are logged, not stored.
package knowledge

import (
	"context"

	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/models"
)

type Store struct {
	logger *logging.Logger
}

func NewStore(logger *logging.Logger) *Store {
	return &Store{logger: logger}
}

// Context returns the knowledge-base context for reply generation. Until a
// real retrieval backend exists this is a fixed object.
func (s *Store) Context(_ context.Context, _ models.Ticket) (map[string]any, error) {
	return map[string]any{
		"knowledge_base": "not yet populated",
		"guidance":       "answer from the customer's message only; escalate anything account-specific",
	}, nil
}

// RecordInteraction logs the interaction that a future knowledge base
// would persist.
func (s *Store) RecordInteraction(rec models.InteractionRecord) {
	s.logger.Info("interaction recorded",
		"ticket_id", rec.TicketID,
		"customer_email", rec.CustomerEmail,
		"subject", rec.Subject,
		"source", string(rec.Source),
		"response_len", len(rec.AIResponse),
	)
}
