package notifier

import (
	"context"
	"strconv"
	"time"

	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

// Enqueuer accepts notifications for delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, n *models.Notification) error
}

// Dispatcher turns bus events into queued notifications for every channel the business configured.
type Dispatcher struct {
	profiles domain.BusinessProvider
	queue    Enqueuer
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewDispatcher(profiles domain.BusinessProvider, queue Enqueuer, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{profiles: profiles, queue: queue, timeout: 5 * time.Second, logger: logger}
}

// Attach subscribes the dispatcher to every event kind on the bus.
func (d *Dispatcher) Attach(bus *events.EventBus) {
	bus.SubscribeAll(d.Handle)
}

func (d *Dispatcher) Handle(event *events.Event) error {
	businessID, text, err := Render(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var target models.NotificationTarget
	if profile, err := d.profiles.GetProfile(ctx, businessID); err != nil {
		d.logger.Warn().Err(err).Str("business_id", businessID).Msg("profile lookup failed, notification goes to log")
	} else {
		target = profile.Notifications
	}

	for _, n := range notificationsFor(event.Type, businessID, text, target) {
		if err := d.queue.Enqueue(ctx, n); err != nil {
			d.logger.Error().Err(err).Str("channel", n.Channel).Str("event", event.Type).Msg("enqueue notification")
		}
	}
	return nil
}

func notificationsFor(kind, businessID, text string, target models.NotificationTarget) []*models.Notification {
	base := models.Notification{Kind: kind, BusinessID: businessID, Text: text}

	var out []*models.Notification
	if target.SMSTo != "" {
		n := base
		n.Channel = models.ChannelSMS
		n.Recipient = target.SMSTo
		out = append(out, &n)
	}
	if target.TelegramChatID != 0 {
		n := base
		n.Channel = models.ChannelTelegram
		n.Recipient = strconv.FormatInt(target.TelegramChatID, 10)
		out = append(out, &n)
	}
	if len(out) == 0 {
		n := base
		n.Channel = models.ChannelLog
		n.Recipient = businessID
		out = append(out, &n)
	}
	return out
}
