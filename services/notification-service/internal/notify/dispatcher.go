package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/homebook/libs/kafkax"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/homebook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	GetContact(ctx context.Context, userID string) (storage.Contact, error)
	InsertNotification(ctx context.Context, n storage.Notification) error
}

// Dispatcher delivers one event. Delivery failures are recorded, not
// retried; only storage errors are returned to the consumer.
type Dispatcher struct {
	store  Store
	email  email.Sender
	sms    sms.Sender
	logger *slog.Logger
}

func NewDispatcher(store Store, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, email: emailSender, sms: smsSender, logger: logger}
}

func (d *Dispatcher) Handle(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error {
	rendered, ok, err := Render(meta.EventType, msg.Value)
	if err != nil {
		d.logger.Error("undecodable event", "err", err, "event_id", meta.EventID)
		return nil
	}
	if !ok {
		return nil
	}

	n := storage.Notification{
		EventID:   meta.EventID,
		EventType: meta.EventType,
		BookingID: rendered.BookingID,
		UserID:    rendered.UserID,
		Subject:   rendered.Subject,
	}

	contact, err := d.store.GetContact(ctx, rendered.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		n.Status, n.FailureReason = storage.StatusSkipped, "no contact on file"
		return d.record(ctx, n)
	case err != nil:
		return fmt.Errorf("load contact: %w", err)
	case contact.Muted:
		n.Status, n.FailureReason = storage.StatusSkipped, "muted"
		return d.record(ctx, n)
	}

	n.Channel, n.Recipient = storage.ChannelEmail, contact.Email
	if contact.Channel == storage.ChannelSMS {
		n.Channel, n.Recipient = storage.ChannelSMS, contact.Phone
	}
	if n.Recipient == "" {
		n.Status, n.FailureReason = storage.StatusSkipped, "no "+n.Channel+" address on file"
		return d.record(ctx, n)
	}

	var sendErr error
	if n.Channel == storage.ChannelSMS {
		n.Provider = d.sms.ProviderID()
		sendErr = d.sms.Send(ctx, n.Recipient, rendered.Subject+": "+rendered.Body)
	} else {
		n.Provider = d.email.ProviderID()
		sendErr = d.email.Send(ctx, n.Recipient, rendered.Subject, rendered.Body)
	}

	n.Status = storage.StatusSent
	if sendErr != nil {
		n.Status, n.FailureReason = storage.StatusFailed, sendErr.Error()
		d.logger.Warn("notification delivery failed", "err", sendErr, "event_id", meta.EventID, "channel", n.Channel)
	}
	return d.record(ctx, n)
}

func (d *Dispatcher) record(ctx context.Context, n storage.Notification) error {
	if err := d.store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	d.logger.Info("notification processed", "event_id", n.EventID, "event_type", n.EventType, "status", n.Status, "channel", n.Channel)
	return nil
}
