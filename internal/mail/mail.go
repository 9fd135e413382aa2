// Package mail composes transactional emails and delivers them over SMTP.
// Request paths never talk to SMTP directly; they hand a Message to a Queue.
package mail

import (
	"context"
	"errors"
	"strings"
)

// Message is a plain-text email. It doubles as the queued task payload.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate checks the fields required for delivery.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail: recipient required")
	}
	if strings.ContainsAny(m.To+m.Subject, "\r\n") {
		return errors.New("mail: header fields must not contain line breaks")
	}
	return nil
}

// Queue accepts messages for asynchronous delivery.
type Queue interface {
	EnqueueEmail(ctx context.Context, msg Message) error
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
