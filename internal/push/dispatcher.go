package push

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/models"
)

const maxParallelSends = 8

// SubscriptionLister is the slice of the store the dispatcher reads.
type SubscriptionLister interface {
	ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error)
}

// Dispatcher routes notifications to the notifier matching each device.
type Dispatcher struct {
	subs      SubscriptionLister
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher. Nil notifiers are skipped.
func NewDispatcher(subs SubscriptionLister, logger zerolog.Logger, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{subs: subs, logger: logger}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

func (d *Dispatcher) notifierFor(platform string) Notifier {
	for _, n := range d.notifiers {
		if n.Supports(platform) {
			return n
		}
	}
	return nil
}

func notifierName(n Notifier) string {
	switch n.(type) {
	case *FCMNotifier:
		return "fcm"
	case *WebNotifier:
		return "web"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// Deliver sends to a single subscription.
func (d *Dispatcher) Deliver(ctx context.Context, sub models.PushSubscription, n Notification) (string, error) {
	notifier := d.notifierFor(sub.Platform)
	if notifier == nil {
		return "", fmt.Errorf("%w: platform %q", ErrNotConfigured, sub.Platform)
	}

	id, err := notifier.Send(ctx, sub, n)
	metrics.PushDeliveries.WithLabelValues(notifierName(notifier), metrics.Result(err)).Inc()
	return id, err
}

// NotifyUser sends to every device the user registered and returns how many
// deliveries succeeded. Individual failures are logged, not returned.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID uuid.UUID, n Notification) (int, error) {
	subs, err := d.subs.ListPushSubscriptions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list push subscriptions: %w", err)
	}

	var sent atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelSends)

	for _, sub := range subs {
		eg.Go(func() error {
			if _, err := d.Deliver(egCtx, sub, n); err != nil {
				d.logger.Warn().Err(err).
					Str("user_id", userID.String()).
					Str("platform", sub.Platform).
					Msg("push delivery failed")
				return nil
			}
			sent.Add(1)
			return nil
		})
	}

	_ = eg.Wait()
	return int(sent.Load()), nil
}
