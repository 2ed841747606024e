package gmail

import (
	"encoding/base64"

	gmailapi "google.golang.org/api/gmail/v1"
)

// NoContent is returned when a message carries nothing decodable.
const NoContent = "No content available"

// ExtractPlainText pulls the text body out of a Gmail message payload.
// Multipart messages are scanned in order and the first text/plain part
// with body data wins; single-part messages decode the top-level body.
// HTML-only messages are not converted.
func ExtractPlainText(payload *gmailapi.MessagePart) string {
	if payload == nil {
		return NoContent
	}

	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			if part.MimeType != "text/plain" {
				continue
			}
			if part.Body == nil || part.Body.Data == "" {
				continue
			}
			if text, ok := decodeBody(part.Body.Data); ok {
				return text
			}
		}
		return NoContent
	}

	if payload.Body != nil && payload.Body.Data != "" {
		if text, ok := decodeBody(payload.Body.Data); ok {
			return text
		}
	}

	return NoContent
}

// decodeBody decodes Gmail's web-safe base64 body data, tolerating both
// padded and unpadded forms.
func decodeBody(data string) (string, bool) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	return "", false
}
