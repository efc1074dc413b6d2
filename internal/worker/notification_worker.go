package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"receptionist/internal/domain"
	"receptionist/internal/models"
	"receptionist/internal/notifier"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "receptionist:notifications"
	defaultDeadLetterKey = "receptionist:notifications:deadletter"
)

// NotificationWorker delivers queued notifications with retries.
// The store is optional; without it notifications live only in memory or redis.
type NotificationWorker struct {
	store         domain.NotificationQueue
	redis         *redis.Client
	senders       map[string]notifier.Sender
	retryPolicy   RetryPolicy
	queue         chan models.Notification
	wake          chan struct{}
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewNotificationWorker(
	store domain.NotificationQueue,
	redisClient *redis.Client,
	senders []notifier.Sender,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *NotificationWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	byChannel := make(map[string]notifier.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}

	return &NotificationWorker{
		store:         store,
		redis:         redisClient,
		senders:       byChannel,
		retryPolicy:   retry,
		queue:         make(chan models.Notification, 128),
		wake:          make(chan struct{}, 1),
		redisQueueKey: defaultQueueKey,
		deadLetterKey: defaultDeadLetterKey,
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// Enqueue persists the notification when a store is set; otherwise it schedules it via redis or memory.
func (w *NotificationWorker) Enqueue(ctx context.Context, n *models.Notification) error {
	if n.Channel == "" {
		return errors.New("notification channel is required")
	}
	if n.Text == "" {
		return errors.New("notification text is required")
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}

	// With a store the table is the only queue; the poller is woken instead of handed a copy.
	if w.store != nil {
		if err := w.store.CreateNotification(ctx, n); err != nil {
			return fmt.Errorf("persist notification: %w", err)
		}
		select {
		case w.wake <- struct{}{}:
		default:
		}
		return nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, n); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	w.pushLocal(*n)
	return nil
}

func (w *NotificationWorker) pushLocal(n models.Notification) {
	select {
	case w.queue <- n:
	default:
		w.logger.Error().Str("kind", n.Kind).Str("business_id", n.BusinessID).Msg("in-memory queue full, notification dropped")
	}
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Int("senders", len(w.senders)).Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if n, ok := w.tryLocalQueue(); ok {
			w.process(ctx, &n)
			continue
		}

		if n, ok := w.tryRedis(ctx); ok {
			w.process(ctx, &n)
			continue
		}

		if w.store == nil {
			w.wait(ctx)
			continue
		}

		pending, err := w.store.GetPendingNotifications(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending notifications")
			w.wait(ctx)
			continue
		}
		if len(pending) == 0 {
			w.wait(ctx)
			continue
		}
		for i := range pending {
			w.process(ctx, &pending[i])
		}
	}
}

func (w *NotificationWorker) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case n := <-w.queue:
		w.process(ctx, &n)
	case <-w.wake:
	case <-time.After(w.pollInterval):
	}
}

func (w *NotificationWorker) tryLocalQueue() (models.Notification, bool) {
	select {
	case n := <-w.queue:
		return n, true
	default:
		return models.Notification{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.Notification, bool) {
	if w.redis == nil {
		return models.Notification{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			w.logger.Warn().Err(err).Msg("redis BRPOP error")
		}
		return models.Notification{}, false
	}
	if len(res) != 2 {
		return models.Notification{}, false
	}
	var n models.Notification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		w.logger.Error().Err(err).Msg("decode redis notification")
		return models.Notification{}, false
	}
	return n, true
}

func (w *NotificationWorker) process(ctx context.Context, n *models.Notification) {
	sender, ok := w.senders[n.Channel]
	if !ok {
		w.fail(ctx, n, fmt.Errorf("no sender for channel %q", n.Channel))
		return
	}

	if err := sender.Send(ctx, n.Recipient, n.Text); err != nil {
		if errors.Is(err, notifier.ErrNotConfigured) {
			w.fail(ctx, n, err)
			return
		}
		w.retryOrFail(ctx, n, err)
		return
	}

	w.logger.Debug().Str("channel", n.Channel).Str("kind", n.Kind).Str("business_id", n.BusinessID).Msg("notification delivered")
	if w.store != nil {
		if err := w.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationCompleted, "", nil); err != nil {
			w.logger.Error().Err(err).Int64("id", n.ID).Msg("mark completed")
		}
	}
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, n *models.Notification, cause error) {
	attempt := n.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.fail(ctx, n, cause)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	w.logger.Warn().Err(cause).Str("channel", n.Channel).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("notification delivery failed")

	if w.store != nil {
		nextTime := time.Now().Add(nextDelay)
		if err := w.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationRetry, cause.Error(), &nextTime); err != nil {
			w.logger.Error().Err(err).Int64("id", n.ID).Msg("mark retry")
		}
		return
	}

	retry := *n
	retry.RetryCount = attempt
	retry.Status = models.NotificationRetry
	time.AfterFunc(nextDelay, func() { w.pushLocal(retry) })
}

func (w *NotificationWorker) fail(ctx context.Context, n *models.Notification, cause error) {
	w.logger.Error().Err(cause).Str("channel", n.Channel).Str("kind", n.Kind).Msg("notification failed")
	if w.store != nil {
		if err := w.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("id", n.ID).Msg("mark failed")
		}
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, n); err != nil {
			w.logger.Error().Err(err).Int64("id", n.ID).Msg("deadletter push")
		}
	}
}

func (w *NotificationWorker) pushRedis(ctx context.Context, key string, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
