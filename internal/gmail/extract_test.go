package gmail

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractPlainTextFirstMatchingPart(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<p>hello</p>")}},
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("first")}},
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("second")}},
		},
	}

	if got := ExtractPlainText(payload); got != "first" {
		t.Errorf("expected 'first', got %q", got)
	}
}

func TestExtractPlainTextSkipsEmptyParts(t *testing.T) {
	payload := &gmailapi.MessagePart{
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/plain"},
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("filled")}},
		},
	}

	if got := ExtractPlainText(payload); got != "filled" {
		t.Errorf("expected 'filled', got %q", got)
	}
}

func TestExtractPlainTextTopLevelBody(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "text/plain",
		Body:     &gmailapi.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("direct body"))},
	}

	if got := ExtractPlainText(payload); got != "direct body" {
		t.Errorf("expected 'direct body', got %q", got)
	}
}

func TestExtractPlainTextSentinel(t *testing.T) {
	cases := map[string]*gmailapi.MessagePart{
		"nil payload": nil,
		"empty":       {},
		"html only": {
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<p>x</p>")}},
			},
		},
	}

	for name, payload := range cases {
		if got := ExtractPlainText(payload); got != NoContent {
			t.Errorf("%s: expected sentinel, got %q", name, got)
		}
	}
}

func TestBuildRawMessage(t *testing.T) {
	raw := BuildRawMessage("support@x.com", "a@x.com", "Re: Help", "Hi Ana,\n\nAll set.")

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw message is not web-safe base64: %v", err)
	}

	msg := string(decoded)
	for _, want := range []string{
		"From: support@x.com\r\n",
		"To: a@x.com\r\n",
		"Subject: Re: Help\r\n",
		"Hi Ana,",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("raw message missing %q", want)
		}
	}
}

func TestTicketFromMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m-123",
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Ana Lopez <a@x.com>"},
				{Name: "Subject", Value: "Can't log in"},
			},
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: b64("Please help")},
		},
	}

	ticket := TicketFromMessage(msg)
	if ticket.ID != "m-123" {
		t.Errorf("expected ID m-123, got %q", ticket.ID)
	}
	if ticket.Subject != "Can't log in" {
		t.Errorf("unexpected subject %q", ticket.Subject)
	}
	if ticket.Customer.Name != "Ana Lopez" || ticket.Customer.Email != "a@x.com" {
		t.Errorf("unexpected customer %+v", ticket.Customer)
	}
	if ticket.FirstMessage() != "Please help" {
		t.Errorf("unexpected body %q", ticket.FirstMessage())
	}
}

func TestParsePushNotification(t *testing.T) {
	inner, _ := json.Marshal(map[string]any{
		"emailAddress": "support@x.com",
		"historyId":    98765,
	})
	body, _ := json.Marshal(map[string]any{
		"message": map[string]any{
			"data": base64.StdEncoding.EncodeToString(inner),
		},
	})

	n, err := ParsePushNotification(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if n.EmailAddress != "support@x.com" {
		t.Errorf("unexpected address %q", n.EmailAddress)
	}
	if n.HistoryID != 98765 {
		t.Errorf("unexpected history id %d", n.HistoryID)
	}
}

func TestParsePushNotificationErrors(t *testing.T) {
	if _, err := ParsePushNotification([]byte("{")); err == nil {
		t.Error("expected error for malformed envelope")
	}
	if _, err := ParsePushNotification([]byte(`{"message":{}}`)); err == nil {
		t.Error("expected error for missing data")
	}
	if _, err := ParsePushNotification([]byte(`{"message":{"data":"!!!"}}`)); err == nil {
		t.Error("expected error for bad base64")
	}
}
