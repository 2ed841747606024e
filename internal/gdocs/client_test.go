package gdocs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voicetel/support-autoresponder/internal/models"
)

func TestFormatTicketLog(t *testing.T) {
	ticket := models.Ticket{
		ID:       "T1",
		Subject:  "Login issue",
		Customer: models.Customer{Name: "Ana", Email: "a@x.com"},
		Messages: []models.Message{
			{Body: "I can't log in"},
			{Text: "still broken"},
			{},
		},
		Source: models.SourceHelpScout,
	}
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	got := FormatTicketLog(ticket, now)

	assert.Contains(t, got, "Ticket: T1")
	assert.Contains(t, got, "Time: 2025-06-01T12:30:00Z")
	assert.Contains(t, got, "Source: helpscout")
	assert.Contains(t, got, "Customer: Ana <a@x.com>")
	assert.Contains(t, got, "Subject: Login issue")
	assert.Contains(t, got, "  - I can't log in")
	assert.Contains(t, got, "  - still broken")
}

func TestFormatTicketLogNoMessages(t *testing.T) {
	got := FormatTicketLog(models.Ticket{ID: "T2", Source: models.SourceManual}, time.Now())
	assert.Contains(t, got, "Ticket: T2")
	assert.Contains(t, got, "Messages:\n")
}
