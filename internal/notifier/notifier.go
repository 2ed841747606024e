// Package notifier formats and posts ticket notifications to Slack.
// Posting is strictly best-effort: every failure is logged and reduced to
// a nil return, never surfaced to the pipeline.
package notifier

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/voicetel/support-autoresponder/internal/config"
	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/models"
	"github.com/voicetel/support-autoresponder/internal/slack"
)

const (
	// maxExcerptChars bounds the customer-message block.
	maxExcerptChars = 500
	// maxPreviewChars bounds the response preview block.
	maxPreviewChars = 200

	emptyMessagePlaceholder = "(no message content)"
)

// ChatAPI is the slice of the Slack client the notifier uses.
type ChatAPI interface {
	PostMessage(ctx context.Context, channel, fallbackText string, blocks []slack.Block) (*models.SlackRef, error)
	PostThreadReply(ctx context.Context, channel, threadTS, text string) error
}

type Notifier struct {
	chat    ChatAPI
	channel string
	links   config.LinkConfig
	logger  *logging.Logger
	dryRun  bool
}

func New(chat ChatAPI, channel string, links config.LinkConfig, logger *logging.Logger, dryRun bool) *Notifier {
	return &Notifier{
		chat:    chat,
		channel: channel,
		links:   links,
		logger:  logger,
		dryRun:  dryRun,
	}
}

// NotifySuccess posts the ticket summary to the configured channel and,
// when a non-empty response exists, posts the complete response as a
// threaded reply under it. Returns nil when nothing was posted.
func (n *Notifier) NotifySuccess(ctx context.Context, t models.Ticket, customer models.Customer, response string) *models.SlackRef {
	blocks := n.successBlocks(t, customer, response)
	fallback := fmt.Sprintf("Ticket %s from %s: %s", t.ID, CustomerLine(customer), t.Subject)

	if n.dryRun {
		n.logger.Info("dry-run: would post slack notification", "ticket_id", t.ID, "channel", n.channel)
		return nil
	}

	ref, err := n.chat.PostMessage(ctx, n.channel, fallback, blocks)
	if err != nil {
		n.logger.LogError("failed to post slack notification", err, "ticket_id", t.ID)
		return nil
	}

	if strings.TrimSpace(response) != "" {
		if err := n.chat.PostThreadReply(ctx, ref.Channel, ref.Timestamp, response); err != nil {
			n.logger.LogError("failed to post threaded response", err, "ticket_id", t.ID)
		}
	}

	return ref
}

// NotifyError posts a single text block describing the failure.
func (n *Notifier) NotifyError(ctx context.Context, t models.Ticket, customer models.Customer, cause error) {
	text := fmt.Sprintf(
		":rotating_light: Failed to process ticket %s\n*Customer:* %s\n*Subject:* %s\n*Error:* %s",
		t.ID, CustomerLine(customer), t.Subject, cause.Error(),
	)

	if n.dryRun {
		n.logger.Info("dry-run: would post slack error notification", "ticket_id", t.ID)
		return
	}

	if _, err := n.chat.PostMessage(ctx, n.channel, text, []slack.Block{slack.SectionBlock(text)}); err != nil {
		n.logger.LogError("failed to post slack error notification", err, "ticket_id", t.ID)
	}
}

func (n *Notifier) successBlocks(t models.Ticket, customer models.Customer, response string) []slack.Block {
	summary := fmt.Sprintf(
		":ticket: *Ticket %s*\n*Customer:* %s\n*Subject:* %s\n*Source:* %s",
		t.ID, CustomerLine(customer), t.Subject, t.Source,
	)
	blocks := []slack.Block{slack.SectionBlock(summary)}

	excerpt := Truncate(t.FirstMessage(), maxExcerptChars)
	if excerpt == "" {
		excerpt = emptyMessagePlaceholder
	}
	blocks = append(blocks, slack.SectionBlock("*Customer message:*\n"+excerpt))

	if strings.TrimSpace(response) != "" {
		blocks = append(blocks, slack.SectionBlock("*Suggested reply:*\n"+Truncate(response, maxPreviewChars)))
	}

	if actions := n.actionButtons(t, customer); len(actions) > 0 {
		blocks = append(blocks, slack.ActionsBlock(actions...))
	}

	return blocks
}

// actionButtons builds the Reply and Full Conversation buttons. Each is
// included only when its base URL is configured.
func (n *Notifier) actionButtons(t models.Ticket, customer models.Customer) []slack.ButtonElement {
	var buttons []slack.ButtonElement

	if n.links.ReplyBaseURL != "" {
		buttons = append(buttons, slack.LinkButton("Reply", buildLink(n.links.ReplyBaseURL, map[string]string{
			"ticket":   t.ID,
			"customer": customer.Email,
			"subject":  t.Subject,
			"source":   string(t.Source),
		})))
	}

	if n.links.ConversationBaseURL != "" {
		buttons = append(buttons, slack.LinkButton("Full Conversation", buildLink(n.links.ConversationBaseURL, map[string]string{
			"ticket": t.ID,
		})))
	}

	return buttons
}

func buildLink(base string, params map[string]string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// CustomerLine renders the customer for display: name and email when both
// are known, whichever exists otherwise, and "Unknown customer" when
// neither does.
func CustomerLine(c models.Customer) string {
	switch {
	case c.Name != "" && c.Email != "":
		return fmt.Sprintf("%s (%s)", c.Name, c.Email)
	case c.Name != "":
		return c.Name
	case c.Email != "":
		return c.Email
	default:
		return "Unknown customer"
	}
}

// Truncate caps s at max characters, ending with an ellipsis when content
// was cut. Counting is rune-based so multi-byte text is not split.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
