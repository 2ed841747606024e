// Package gdocs appends ticket log records to a shared Google Doc.
package gdocs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/voicetel/support-autoresponder/internal/models"
)

type Client struct {
	svc   *docs.Service
	docID string
}

// NewClient builds a Docs client from a service account key. The target
// document must be shared with the service account as an editor.
func NewClient(ctx context.Context, credentialsFile, docID string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data, docs.DocumentsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	svc, err := docs.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}

	return &Client{svc: svc, docID: docID}, nil
}

// AppendTicketLog inserts the text at the end of the document body.
func (c *Client) AppendTicketLog(ctx context.Context, text string) error {
	req := &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{
			{
				InsertText: &docs.InsertTextRequest{
					Text:                 text,
					EndOfSegmentLocation: &docs.EndOfSegmentLocation{},
				},
			},
		},
	}

	if _, err := c.svc.Documents.BatchUpdate(c.docID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to append to doc %s: %w", c.docID, err)
	}
	return nil
}

// FormatTicketLog renders the fixed plain-text record that gets appended
// to the log document for every ticket.
func FormatTicketLog(t models.Ticket, now time.Time) string {
	var b strings.Builder
	b.WriteString("==============================\n")
	b.WriteString("Ticket: " + t.ID + "\n")
	b.WriteString("Time: " + now.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("Source: " + string(t.Source) + "\n")
	b.WriteString(fmt.Sprintf("Customer: %s <%s>\n", t.Customer.Name, t.Customer.Email))
	b.WriteString("Subject: " + t.Subject + "\n")
	b.WriteString("Messages:\n")
	for _, m := range t.Messages {
		if content := m.Content(); content != "" {
			b.WriteString("  - " + content + "\n")
		}
	}
	return b.String()
}
