// Package ticket builds Ticket values from the loosely-shaped JSON payloads
// that arrive on the webhook and manual endpoints.
package ticket

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/voicetel/support-autoresponder/internal/models"
)

// NormalizeCustomer extracts a canonical {name, email} pair from a raw
// ticket payload. The "customer" field may be an object, a JSON-encoded
// string, or absent entirely; top-level aliases in several casings are also
// accepted. Precedence, highest first:
//
//	customer.name > customer.Name > customer_name > CustomerName > Name > name
//
// and the email equivalents. A customer string that fails to parse is
// treated as an empty object; this function never returns an error.
func NormalizeCustomer(payload map[string]any) models.Customer {
	nested := customerObject(payload["customer"])

	return models.Customer{
		Name: firstString(nested, "name", "Name",
			payload, "customer_name", "CustomerName", "Name", "name"),
		Email: firstString(nested, "email", "Email",
			payload, "customer_email", "CustomerEmail", "Email", "email"),
	}
}

// customerObject coerces the customer field into a map. Strings are parsed
// as JSON; parse failures and unexpected types yield an empty map.
func customerObject(v any) map[string]any {
	switch c := v.(type) {
	case map[string]any:
		return c
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(c), &parsed); err != nil {
			return map[string]any{}
		}
		return parsed
	default:
		return map[string]any{}
	}
}

// firstString returns the first non-empty string found by checking the two
// nested keys on the customer object, then the top-level aliases in order.
func firstString(nested map[string]any, nestedKey, nestedAlt string, payload map[string]any, aliases ...string) string {
	if s := stringField(nested, nestedKey); s != "" {
		return s
	}
	if s := stringField(nested, nestedAlt); s != "" {
		return s
	}
	for _, key := range aliases {
		if s := stringField(payload, key); s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// FromPayload builds a Ticket from a decoded JSON payload. Missing IDs are
// replaced with a generated UUID so every pipeline run has a stable ticket
// reference for logging and notifications.
func FromPayload(payload map[string]any, source models.TicketSource) models.Ticket {
	t := models.Ticket{
		ID:       payloadID(payload),
		Subject:  stringField(payload, "subject"),
		Customer: NormalizeCustomer(payload),
		Source:   source,
	}

	if rawMsgs, ok := payload["messages"].([]any); ok {
		for _, raw := range rawMsgs {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			t.Messages = append(t.Messages, models.Message{
				Body: stringField(m, "body"),
				Text: stringField(m, "text"),
			})
		}
	}

	return t
}

// payloadID reads the ticket ID, tolerating numeric IDs from helpdesk
// payloads, and generates one when the payload carries none.
func payloadID(payload map[string]any) string {
	switch id := payload["id"].(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return fmt.Sprintf("%.0f", id)
	}
	return uuid.NewString()
}
