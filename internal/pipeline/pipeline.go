// Package pipeline runs one ticket through the fixed processing sequence:
// document log, knowledge context, reply resolution, email, chat
// notification, interaction record. Best-effort steps absorb their own
// failures; anything else aborts the run after a best-effort error
// notification.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voicetel/support-autoresponder/internal/gdocs"
	"github.com/voicetel/support-autoresponder/internal/gmail"
	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/metrics"
	"github.com/voicetel/support-autoresponder/internal/models"
	"github.com/voicetel/support-autoresponder/internal/notifier"
)

// maxSummaryPreview bounds the message and response previews in the result.
const maxSummaryPreview = 180

// MailSender sends the reply email. Nil disables the email step.
type MailSender interface {
	SendReply(ctx context.Context, to, subject, body string) error
}

// DocAppender appends a record to the ticket log document. Nil disables
// the document-log step.
type DocAppender interface {
	AppendTicketLog(ctx context.Context, text string) error
}

// ReplyGenerator produces a suggested reply; an empty string means none.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, t models.Ticket, customer models.Customer, kbContext map[string]any) string
}

// KnowledgeStore supplies generation context and records interactions.
type KnowledgeStore interface {
	Context(ctx context.Context, t models.Ticket) (map[string]any, error)
	RecordInteraction(rec models.InteractionRecord)
}

// ChatNotifier posts the outcome to chat. Both methods are best-effort
// and absorb their own failures.
type ChatNotifier interface {
	NotifySuccess(ctx context.Context, t models.Ticket, customer models.Customer, response string) *models.SlackRef
	NotifyError(ctx context.Context, t models.Ticket, customer models.Customer, cause error)
}

type Pipeline struct {
	mail     MailSender
	docs     DocAppender
	gen      ReplyGenerator
	kb       KnowledgeStore
	notifier ChatNotifier
	metrics  *metrics.Metrics
	logger   *logging.Logger
	dryRun   bool
}

func New(mail MailSender, docs DocAppender, gen ReplyGenerator, kb KnowledgeStore, chat ChatNotifier, m *metrics.Metrics, logger *logging.Logger, dryRun bool) *Pipeline {
	return &Pipeline{
		mail:     mail,
		docs:     docs,
		gen:      gen,
		kb:       kb,
		notifier: chat,
		metrics:  m,
		logger:   logger,
		dryRun:   dryRun,
	}
}

// Run processes one ticket. On a fatal error it attempts one best-effort
// chat error notification and returns the original error to the caller.
func (p *Pipeline) Run(ctx context.Context, t models.Ticket, opts models.Options) (*models.PipelineResult, error) {
	result, err := p.run(ctx, t, opts)
	if err != nil {
		p.metrics.TicketsProcessed.WithLabelValues(string(t.Source), "error").Inc()
		p.notifier.NotifyError(ctx, t, t.Customer, err)
		return nil, err
	}

	p.metrics.TicketsProcessed.WithLabelValues(string(t.Source), "ok").Inc()
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, t models.Ticket, opts models.Options) (*models.PipelineResult, error) {
	steps := make(map[string]string)

	// 1. The customer pair was normalized when the ticket was built; the
	// run works from the canonical value from here on.
	customer := t.Customer

	// 2. Document log, best-effort.
	p.logTicket(ctx, t, steps)

	// 3. Knowledge-base context.
	kbContext, err := p.kb.Context(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch knowledge context: %w", err)
	}

	// 4. Resolve the response: draft wins, then the skip flag, then
	// generation (whose failures degrade to an empty response).
	response, usedAI := p.resolveResponse(ctx, t, customer, kbContext, opts, steps)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline aborted: %w", err)
	}

	// 5. Email, unless skipped; empty responses never go out.
	emailed := p.sendEmail(ctx, t, customer, response, opts, steps)

	// 6. Chat notification, always attempted.
	slackRef := p.notifier.NotifySuccess(ctx, t, customer, response)
	if slackRef != nil {
		steps["notify"] = "posted"
		p.metrics.ChatPosts.WithLabelValues("ok").Inc()
	} else {
		steps["notify"] = "not posted"
		p.metrics.ChatPosts.WithLabelValues("failed").Inc()
	}

	// 7. Interaction record.
	p.kb.RecordInteraction(models.InteractionRecord{
		Timestamp:     time.Now().UTC(),
		TicketID:      t.ID,
		CustomerQuery: t.FirstMessage(),
		AIResponse:    response,
		CustomerEmail: customer.Email,
		Subject:       t.Subject,
		Source:        t.Source,
	})

	return &models.PipelineResult{
		OK:       true,
		TicketID: t.ID,
		UsedAI:   usedAI,
		Emailed:  emailed,
		Summary: models.Summary{
			Source:          t.Source,
			Subject:         t.Subject,
			Customer:        customer,
			MessagePreview:  notifier.Truncate(t.FirstMessage(), maxSummaryPreview),
			ResponsePreview: notifier.Truncate(response, maxSummaryPreview),
			Flags: models.RunFlags{
				SkipEmail: opts.SkipEmail,
				SkipAI:    opts.SkipAI,
				Draft:     opts.Draft != nil,
			},
			Steps: steps,
		},
		Slack: slackRef,
	}, nil
}

func (p *Pipeline) logTicket(ctx context.Context, t models.Ticket, steps map[string]string) {
	if p.docs == nil {
		p.logger.Warn("document log not configured, skipping", "ticket_id", t.ID)
		steps["doc_log"] = "skipped: not configured"
		return
	}
	if p.dryRun {
		steps["doc_log"] = "dry-run"
		return
	}

	if err := p.docs.AppendTicketLog(ctx, gdocs.FormatTicketLog(t, time.Now())); err != nil {
		p.logger.LogError("failed to append ticket log", err, "ticket_id", t.ID)
		steps["doc_log"] = "failed"
		return
	}
	steps["doc_log"] = "ok"
}

func (p *Pipeline) resolveResponse(ctx context.Context, t models.Ticket, customer models.Customer, kbContext map[string]any, opts models.Options, steps map[string]string) (string, bool) {
	switch {
	case opts.Draft != nil:
		steps["respond"] = "draft"
		return *opts.Draft, false
	case opts.SkipAI:
		steps["respond"] = "skipped"
		return "", false
	default:
		response := p.gen.GenerateReply(ctx, t, customer, kbContext)
		if response == "" {
			steps["respond"] = "empty"
			p.metrics.AIRequests.WithLabelValues("empty").Inc()
		} else {
			steps["respond"] = "generated"
			p.metrics.AIRequests.WithLabelValues("ok").Inc()
		}
		return response, true
	}
}

func (p *Pipeline) sendEmail(ctx context.Context, t models.Ticket, customer models.Customer, response string, opts models.Options, steps map[string]string) bool {
	switch {
	case opts.SkipEmail:
		steps["email"] = "skipped: flag"
		return false
	case strings.TrimSpace(response) == "":
		p.logger.Warn("empty response, not emailing", "ticket_id", t.ID)
		steps["email"] = "skipped: empty response"
		return false
	case p.mail == nil:
		p.logger.Warn("mail sender not configured, skipping email", "ticket_id", t.ID)
		steps["email"] = "skipped: not configured"
		return false
	case customer.Email == "":
		p.logger.Warn("no customer email, skipping email", "ticket_id", t.ID)
		steps["email"] = "skipped: no customer email"
		return false
	case p.dryRun:
		p.logger.Info("dry-run: would email customer", "ticket_id", t.ID, "to", customer.Email)
		steps["email"] = "dry-run"
		return false
	}

	body := gmail.FormatReplyBody(customer, response)
	if err := p.mail.SendReply(ctx, customer.Email, replySubject(t), body); err != nil {
		p.logger.LogError("failed to send reply email", err, "ticket_id", t.ID)
		steps["email"] = "failed"
		return false
	}

	p.metrics.EmailsSent.Inc()
	steps["email"] = "sent"
	return true
}

func replySubject(t models.Ticket) string {
	if t.Subject == "" {
		return "Re: your support request"
	}
	return "Re: " + t.Subject
}
