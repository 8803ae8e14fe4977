// Package notify delivers out-of-band notices to users who missed room activity.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQueueFull is returned by Enqueue when every worker is busy and the queue has no room.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Sender is the outbound delivery channel.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, subject, body string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// Notice describes one message a recipient missed.
type Notice struct {
	Email     string
	Recipient string
	RoomID    string
	RoomLabel string
	Sender    string
	Text      string
	SentAt    time.Time
}

// DeliveryError reports a failed notification to a single recipient.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver notification to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
