package push

import (
	"context"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/realtime"
)

// WebNotifier shows notifications in open browser dashboards through the
// realtime channel.
type WebNotifier struct {
	publisher realtime.Publisher
}

// NewWebNotifier creates a notifier on top of a realtime publisher.
func NewWebNotifier(publisher realtime.Publisher) *WebNotifier {
	return &WebNotifier{publisher: publisher}
}

// Supports implements Notifier.
func (w *WebNotifier) Supports(platform string) bool {
	return platform == models.PlatformWeb
}

// Send implements Notifier. The returned ID is the realtime event ID.
func (w *WebNotifier) Send(ctx context.Context, sub models.PushSubscription, n Notification) (string, error) {
	ev := realtime.NewEvent(realtime.EventNotification, sub.UserID, n)
	if err := w.publisher.Publish(ctx, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}
