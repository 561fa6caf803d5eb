package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/balu-property/damage-service/internal/config"
	"github.com/balu-property/damage-service/internal/events"
)

// Notification is one message for one recipient.
type Notification struct {
	EventID   string
	EventType events.EventType
	TicketID  string
	Recipient events.Recipient
	Subject   string
	Data      map[string]any
}

// Notifier delivers notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log and calls the e-mail and webhook stubs.
type LogNotifier struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewLogNotifier creates the default notifier.
func NewLogNotifier(logger *zap.Logger, cfg config.NotificationConfig) *LogNotifier {
	return &LogNotifier{logger: logger, cfg: cfg}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	n.logger.Info(note.Subject,
		zap.String("event_id", note.EventID),
		zap.String("damage_id", note.TicketID),
		zap.String("recipient_id", note.Recipient.ActorID),
		zap.String("recipient_role", string(note.Recipient.Role)))
	if note.Recipient.Email != "" {
		n.sendEmailNotificationStub(ctx, note)
	}
	n.sendWebhookNotificationStub(ctx, note)
	return nil
}

func (n *LogNotifier) sendEmailNotificationStub(_ context.Context, note Notification) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", note.Recipient.Email),
		zap.String("damage_id", note.TicketID),
		zap.String("event_type", string(note.EventType)))
}

func (n *LogNotifier) sendWebhookNotificationStub(_ context.Context, note Notification) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("damage_id", note.TicketID),
		zap.String("event_type", string(note.EventType)))
}

// NotificationService fans domain events out to their recipients.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes() {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

var subjects = map[events.EventType]string{
	events.EventDamageCreated:       "DamageCreated",
	events.EventDamageStatusChanged: "DamageStatusChanged",
	events.EventOfferCreated:        "OfferCreated",
	events.EventOfferRequested:      "OfferRequested",
	events.EventDefectRaised:        "DefectRaised",
	events.EventRatingCreated:       "RatingCreated",
	events.EventRequestReconciled:   "RequestReconciled",
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	subject := subjects[event.Type]
	if subject == "" {
		subject = string(event.Type)
	}
	if len(event.Recipients) == 0 {
		n.logger.Debug("event without recipients", zap.String("event_type", string(event.Type)), zap.String("damage_id", event.TicketID))
		return nil
	}

	var errs []error
	for _, recipient := range event.Recipients {
		err := n.notifier.Notify(ctx, Notification{
			EventID:   event.ID,
			EventType: event.Type,
			TicketID:  event.TicketID,
			Recipient: recipient,
			Subject:   subject,
			Data:      event.Payload,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify %s%s: %w", recipient.ActorID, recipient.Email, err))
		}
	}
	return errors.Join(errs...)
}
