package payments

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/VNZray/capstone-project-sub008/internal/events"
	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
)

const (
	ProviderPayMongo = "paymongo"

	EventPaymentPaid   = "payment.paid"
	EventPaymentFailed = "payment.failed"
)

type WebhookService struct {
	store     ledger.Store
	publisher events.Publisher
	logger    *slog.Logger
}

func NewWebhookService(store ledger.Store, publisher events.Publisher) *WebhookService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &WebhookService{store: store, publisher: publisher, logger: slog.Default()}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Handle records a verified event once and moves the matching attempt's
// payment status. Replays and unhandled types return nil so the provider
// stops retrying.
func (s *WebhookService) Handle(ctx context.Context, ev WebhookEvent, rawBody []byte) error {
	var upd *ledger.PaymentUpdate
	switch ev.Type {
	case EventPaymentPaid:
		upd = &ledger.PaymentUpdate{IntentID: ev.IntentID, Status: ledger.PaymentSucceeded}
	case EventPaymentFailed:
		// stored as the user-facing text the processing screen shows
		cls := Classify(&IntentFailedError{
			IntentID: ev.IntentID,
			Last:     &PaymentError{FailedCode: ev.FailedCode, FailedMessage: ev.FailedMessage},
		})
		upd = &ledger.PaymentUpdate{
			IntentID:     ev.IntentID,
			Status:       ledger.PaymentFailed,
			ErrorTitle:   cls.Title,
			ErrorMessage: cls.Message,
		}
	}
	if upd != nil && upd.IntentID == "" {
		return errors.New("webhook: missing payment_intent_id")
	}

	err := s.store.RecordPaymentEvent(ctx, ledger.ProviderEvent{
		Provider:    ProviderPayMongo,
		EventID:     ev.EventID,
		EventType:   ev.Type,
		PayloadJSON: datatypes.JSON(rawBody),
	}, upd)
	switch {
	case errors.Is(err, ledger.ErrDuplicateEvent):
		s.logger.InfoContext(ctx, "webhook event deduplicated", "event_id", ev.EventID, "type", ev.Type)
		return nil
	case err != nil:
		s.logger.ErrorContext(ctx, "webhook event apply failed", "event_id", ev.EventID, "type", ev.Type, "err", err)
		return err
	}

	if upd != nil {
		pe := events.New(events.TypePaymentUpdated)
		pe.IntentID = upd.IntentID
		pe.Detail = upd.Status
		if err := s.publisher.Publish(ctx, pe); err != nil {
			s.logger.WarnContext(ctx, "publish payment update failed", "intent_id", upd.IntentID, "err", err)
		}
	}

	s.logger.InfoContext(ctx, "webhook event processed", "event_id", ev.EventID, "type", ev.Type, "intent_id", ev.IntentID)
	return nil
}
