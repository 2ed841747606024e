// Package gmail wraps the Gmail API for the two narrow capabilities the
// pipeline needs: fetching newly arrived messages and sending replies.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/voicetel/support-autoresponder/internal/models"
)

type Client struct {
	svc  *gmailapi.Service
	user string
}

// NewClient builds a Gmail client from a service account key with
// domain-wide delegation, impersonating the given mailbox.
func NewClient(ctx context.Context, credentialsFile, user string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data,
		gmailapi.GmailReadonlyScope,
		gmailapi.GmailSendScope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	jwtCfg.Subject = user

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{svc: svc, user: user}, nil
}

// MessagesSince returns the full messages added to the mailbox after the
// given history ID. Push notifications only carry a history cursor, not a
// message ID, so the history list is the authoritative way to find what
// actually arrived.
func (c *Client) MessagesSince(ctx context.Context, historyID uint64) ([]*gmailapi.Message, error) {
	var messages []*gmailapi.Message

	call := c.svc.Users.History.List(c.user).
		StartHistoryId(historyID).
		HistoryTypes("messageAdded").
		Context(ctx)

	err := call.Pages(ctx, func(page *gmailapi.ListHistoryResponse) error {
		for _, h := range page.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				full, err := c.svc.Users.Messages.Get(c.user, added.Message.Id).
					Format("full").Context(ctx).Do()
				if err != nil {
					return fmt.Errorf("failed to fetch message %s: %w", added.Message.Id, err)
				}
				messages = append(messages, full)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return messages, nil
}

// SendReply sends a plain-text reply to the customer.
func (c *Client) SendReply(ctx context.Context, to, subject, body string) error {
	raw := BuildRawMessage(c.user, to, subject, body)
	_, err := c.svc.Users.Messages.Send(c.user, &gmailapi.Message{Raw: raw}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send reply to %s: %w", to, err)
	}
	return nil
}

// BuildRawMessage assembles an RFC 2822 message and encodes it the way the
// Gmail send API expects (web-safe base64 without padding).
func BuildRawMessage(from, to, subject, body string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.RawURLEncoding.EncodeToString([]byte(b.String()))
}

const replySignature = "Best regards,\nThe Support Team\n\n(This reply was prepared by our automated assistant.)"

// FormatReplyBody renders the outbound reply: greeting, response text, and
// the fixed signature footer.
func FormatReplyBody(customer models.Customer, response string) string {
	greeting := "Hello,"
	if customer.Name != "" {
		greeting = "Hi " + customer.Name + ","
	}
	return greeting + "\n\n" + response + "\n\n" + replySignature
}

// TicketFromMessage converts a fetched Gmail message into a Ticket. The
// sender's display name and address become the customer; the plain-text
// body becomes the first (and only) message.
func TicketFromMessage(msg *gmailapi.Message) models.Ticket {
	t := models.Ticket{
		ID:     msg.Id,
		Source: models.SourceGmail,
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				t.Subject = h.Value
			case "From":
				if addr, err := mail.ParseAddress(h.Value); err == nil {
					t.Customer = models.Customer{Name: addr.Name, Email: addr.Address}
				} else {
					t.Customer = models.Customer{Email: h.Value}
				}
			}
		}
	}

	t.Messages = []models.Message{{Body: ExtractPlainText(msg.Payload)}}
	return t
}
