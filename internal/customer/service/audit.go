package service

import (
	"context"
	"log/slog"

	"customerhub/internal/customer/models"
	"customerhub/pkg/requestcontext"
)

// auditEmitter writes one structured audit line per committed domain event.
type auditEmitter struct {
	logger *slog.Logger
}

func newAuditEmitter(logger *slog.Logger) *auditEmitter {
	return &auditEmitter{logger: logger}
}

func (e *auditEmitter) emit(ctx context.Context, events []models.DomainEvent) {
	if e.logger == nil {
		return
	}
	for _, event := range events {
		args := []any{
			"event", event.EventType(),
			"customer_id", event.AggregateID().String(),
			"log_type", "audit",
		}
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			args = append(args, "request_id", requestID)
		}
		if actor := requestcontext.ActorID(ctx); actor != "" {
			args = append(args, "actor_id", actor)
		}
		if channel := requestcontext.Channel(ctx); channel != "" {
			args = append(args, "channel", channel)
		}
		args = append(args, eventAttrs(event)...)
		e.logger.InfoContext(ctx, event.EventType(), args...)
	}
}

// eventAttrs adds the few event-specific fields worth auditing. Card numbers
// only ever appear masked.
func eventAttrs(event models.DomainEvent) []any {
	switch ev := event.(type) {
	case models.CustomerBlocked:
		return []any{"reason", ev.Reason, "requires_manual_review", ev.RequiresManualReview}
	case models.CustomerUnblocked:
		return []any{"reason", ev.Reason, "administrator", ev.Administrator}
	case models.CardAdded:
		return []any{"card_id", ev.Card.CardID.String(), "card", ev.Card.Masked}
	case models.CardRemoved:
		return []any{"card_id", ev.Card.CardID.String(), "card", ev.Card.Masked, "reason", ev.Reason}
	case models.CardRejected:
		return []any{"card_id", ev.Card.CardID.String(), "reason", ev.Reason}
	case models.CardNumberUpdated:
		return []any{"card_id", ev.After.CardID.String(), "card", ev.After.Masked}
	}
	return nil
}
