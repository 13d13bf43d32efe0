package services

import (
	"context"
	"errors"
)

var (
	ErrChannelUnavailable = errors.New("whatsapp não está pronto")
	ErrAmbiguousContact   = errors.New("mais de um contato com o mesmo telefone")
)

// Channel is the messaging transport the engine drives.
type Channel interface {
	IsReady() bool
	// Resolve maps a phone number to a routable chat id. It never fails: when
	// the lookup does not work it returns the id built from the digits.
	Resolve(ctx context.Context, phone string) string
	Send(ctx context.Context, to string, text string) (string, error)
}

// Notifier pushes live updates to connected dashboards.
type Notifier interface {
	Broadcast(event interface{})
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(interface{}) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
