// Package mailer delivers report batches by email.
//
// A Transport opens one Session per dispatch cycle; every warehouse batch in
// that cycle is sent through the same session. Sends are never retried here:
// a failed batch is simply tried again on the next cycle.
package mailer

import (
	"context"
	"errors"
)

var (
	// ErrConnect reports that no session could be opened.
	ErrConnect = errors.New("mail transport unavailable")
	// ErrSend reports that a single message was not accepted.
	ErrSend = errors.New("mail send failed")
)

// Message is one outgoing email. Attachments are absolute file paths.
type Message struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []string
}

// Transport opens mail sessions.
type Transport interface {
	Connect(ctx context.Context) (Session, error)
}

// Session sends messages over an open connection.
type Session interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}
