package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/balu-property/damage-service/internal/service"
)

// Consumer pulls events from an external bus until ctx ends.
type Consumer interface {
	Run(ctx context.Context) error
}

// NotificationWorker registers the notification handlers and keeps the bus consumer running.
type NotificationWorker struct {
	notifications *service.NotificationService
	consumer      Consumer
	logger        *zap.Logger
	retryDelay    time.Duration
}

// NewNotificationWorker creates a worker. consumer may be nil when events stay in process.
func NewNotificationWorker(notifications *service.NotificationService, consumer Consumer, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{
		notifications: notifications,
		consumer:      consumer,
		logger:        logger.With(zap.String("component", "worker.notifications")),
		retryDelay:    2 * time.Second,
	}
}

// Start subscribes the handlers and, with a consumer, runs it in the background.
// The returned channel closes once the consumer has stopped.
func (w *NotificationWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if w.notifications != nil {
		w.notifications.RegisterHandlers()
	}
	if w.consumer == nil {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		for {
			err := w.consumer.Run(ctx)
			if ctx.Err() != nil {
				w.logger.Info("notification consumer stopped")
				return
			}
			if err != nil {
				w.logger.Warn("notification consumer failed; retrying", zap.Error(err), zap.Duration("retry_in", w.retryDelay))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryDelay):
			}
		}
	}()
	return done
}
