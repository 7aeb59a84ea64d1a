// Package push delivers notifications to the devices a host registered.
package push

import (
	"context"
	"errors"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

// ErrNotConfigured is returned when no notifier handles a subscription's platform.
var ErrNotConfigured = errors.New("push notifications not configured")

// Notification is the platform-independent content of a push.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers notifications for the platforms it supports. Send
// returns the provider's message identifier.
type Notifier interface {
	Supports(platform string) bool
	Send(ctx context.Context, sub models.PushSubscription, n Notification) (string, error)
}
