package gmail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PushNotification is the decoded content of a Gmail Pub/Sub push message.
type PushNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// pushEnvelope is the Pub/Sub wrapper around the notification data.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

// ParsePushNotification decodes the {message:{data: base64 JSON}} envelope
// Gmail watch notifications arrive in.
func ParsePushNotification(body []byte) (*PushNotification, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse push envelope: %w", err)
	}
	if env.Message.Data == "" {
		return nil, fmt.Errorf("push envelope has no message data")
	}

	decoded, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		// Pub/Sub emulators and some proxies use the URL-safe alphabet
		decoded, err = base64.URLEncoding.DecodeString(env.Message.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode push data: %w", err)
		}
	}

	var n PushNotification
	if err := json.Unmarshal(decoded, &n); err != nil {
		return nil, fmt.Errorf("failed to parse push notification: %w", err)
	}
	return &n, nil
}
