package testsupport

import (
	"context"
	"fmt"
	"sync"

	"courier/internal/mailer"
)

// FakeTransport records connects and messages instead of talking to a mail
// server.
type FakeTransport struct {
	mu         sync.Mutex
	ConnectErr error
	// FailFor makes sends to the listed recipients fail.
	FailFor  map[string]error
	Connects int
	Closes   int
	Sent     []mailer.Message
	// BeforeSend runs before each message is accepted.
	BeforeSend func(mailer.Message)
}

func (f *FakeTransport) Connect(context.Context) (mailer.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connects++
	if f.ConnectErr != nil {
		return nil, fmt.Errorf("%w: %w", mailer.ErrConnect, f.ConnectErr)
	}
	return &fakeSession{transport: f}, nil
}

// Messages returns a copy of every accepted message.
func (f *FakeTransport) Messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.Sent...)
}

// ConnectCount reports how many sessions were requested.
func (f *FakeTransport) ConnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connects
}

type fakeSession struct {
	transport *FakeTransport
}

func (s *fakeSession) Send(ctx context.Context, msg mailer.Message) error {
	f := s.transport
	if f.BeforeSend != nil {
		f.BeforeSend(msg)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", mailer.ErrSend, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailFor[msg.To]; ok {
		return fmt.Errorf("%w: %w", mailer.ErrSend, err)
	}
	msg.Attachments = append([]string(nil), msg.Attachments...)
	f.Sent = append(f.Sent, msg)
	return nil
}

func (s *fakeSession) Close() error {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.transport.Closes++
	return nil
}
