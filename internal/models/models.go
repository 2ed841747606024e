package models

import "time"

// TicketSource identifies where an inbound ticket came from.
type TicketSource string

const (
	SourceHelpScout TicketSource = "helpscout"
	SourceGmail     TicketSource = "gmail"
	SourceManual    TicketSource = "manual"
)

// Customer is the normalized customer identity attached to a ticket.
// Both fields are always plain strings, possibly empty, never absent.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IsEmpty reports whether neither a name nor an email is known.
func (c Customer) IsEmpty() bool {
	return c.Name == "" && c.Email == ""
}

// Message is one message in a ticket's conversation. Inbound payloads use
// either "body" or "text" for the content.
type Message struct {
	Body string `json:"body,omitempty"`
	Text string `json:"text,omitempty"`
}

// Content returns the message content regardless of which field carried it.
func (m Message) Content() string {
	if m.Body != "" {
		return m.Body
	}
	return m.Text
}

// Ticket is one customer-support request. It is built once per inbound
// event, lives for a single pipeline run, and is never persisted.
type Ticket struct {
	ID       string       `json:"id"`
	Subject  string       `json:"subject"`
	Customer Customer     `json:"customer"`
	Messages []Message    `json:"messages"`
	Source   TicketSource `json:"source"`
}

// FirstMessage returns the content of the first message, or "" when the
// ticket has no messages.
func (t Ticket) FirstMessage() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[0].Content()
}

// Options control branch selection for one pipeline run.
type Options struct {
	SkipEmail bool
	SkipAI    bool
	// Draft is caller-supplied reply text that bypasses generation.
	// Nil means no draft was supplied.
	Draft *string
}

// SlackRef identifies a posted Slack message.
type SlackRef struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

// RunFlags echoes the options that governed a run.
type RunFlags struct {
	SkipEmail bool `json:"skip_email"`
	SkipAI    bool `json:"skip_ai"`
	Draft     bool `json:"draft"`
}

// Summary is the human-oriented portion of a PipelineResult.
type Summary struct {
	Source          TicketSource      `json:"source"`
	Subject         string            `json:"subject"`
	Customer        Customer          `json:"customer"`
	MessagePreview  string            `json:"message_preview"`
	ResponsePreview string            `json:"response_preview"`
	Flags           RunFlags          `json:"flags"`
	Steps           map[string]string `json:"steps,omitempty"`
}

// PipelineResult is returned to the caller of a pipeline run.
//
// UsedAI is true only when neither SkipAI nor a draft applied. Emailed is
// true only when email was not skipped and a non-empty response existed.
type PipelineResult struct {
	OK       bool      `json:"ok"`
	TicketID string    `json:"ticketId"`
	UsedAI   bool      `json:"used_ai"`
	Emailed  bool      `json:"emailed"`
	Summary  Summary   `json:"summary"`
	Slack    *SlackRef `json:"slack"`
}

// InteractionRecord is the shape a future knowledge base would store per
// handled ticket. It is constructed and logged but never persisted.
type InteractionRecord struct {
	Timestamp     time.Time    `json:"timestamp"`
	TicketID      string       `json:"ticketId"`
	CustomerQuery string       `json:"customerQuery"`
	AIResponse    string       `json:"aiResponse"`
	CustomerEmail string       `json:"customerEmail"`
	Subject       string       `json:"subject"`
	Source        TicketSource `json:"source"`
}
