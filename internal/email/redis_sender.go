package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CapturedEmailTTL bounds how long a captured email stays fetchable.
const CapturedEmailTTL = 10 * time.Minute

// CapturedKey returns the Redis key a captured email for the recipient is
// stored under. Exported so the service-control API can read captures back.
func CapturedKey(recipient string) string {
	return fmt.Sprintf("mockemail:%s", recipient)
}

// RedisSender implements the Sender interface by storing emails in Redis
// instead of sending them. Enabled via MOCK_SERVICES=true so black-box tests
// can inspect what a simulated delivery produced.
type RedisSender struct {
	client *redis.Client
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client) Sender {
	return &RedisSender{client: client}
}

// capturedEmail is the JSON document stored per recipient.
type capturedEmail struct {
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	RawMessage string   `json:"raw_message"`
	CapturedAt string   `json:"captured_at"`
}

// Send stores a representation of the email in Redis keyed by each recipient.
// A later capture for the same recipient overwrites the earlier one.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	payload, err := json.Marshal(capturedEmail{
		To:         to,
		Subject:    subject,
		RawMessage: string(rawMessage),
		CapturedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal captured email: %w", err)
	}

	for _, recipient := range to {
		if err := s.client.Set(ctx, CapturedKey(recipient), payload, CapturedEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store captured email for %s: %w", recipient, err)
		}
	}
	return nil
}
