package email

import (
	"context"
	"errors"
	"fmt"
)

// CompositeEmailSender fans a message out to a primary sender plus any number
// of secondary sinks (file log, Redis capture). The primary's error decides
// the overall outcome; secondary failures are collected but non-fatal.
type CompositeEmailSender struct {
	primary   Sender
	secondary []Sender
}

// NewCompositeEmailSender creates a composite around the given primary sender.
func NewCompositeEmailSender(primary Sender) *CompositeEmailSender {
	return &CompositeEmailSender{primary: primary}
}

// AddSender registers an additional sink.
func (c *CompositeEmailSender) AddSender(s Sender) {
	c.secondary = append(c.secondary, s)
}

// Send delivers through the primary sender and all secondary sinks.
func (c *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryErr := c.primary.Send(ctx, to, subject, rawMessage)

	var secondaryErrs []error
	for _, s := range c.secondary {
		if err := s.Send(ctx, to, subject, rawMessage); err != nil {
			secondaryErrs = append(secondaryErrs, err)
		}
	}

	if primaryErr != nil {
		return fmt.Errorf("primary sender failed: %w", primaryErr)
	}
	if len(secondaryErrs) > 0 {
		return fmt.Errorf("secondary sender(s) failed: %w", errors.Join(secondaryErrs...))
	}
	return nil
}
