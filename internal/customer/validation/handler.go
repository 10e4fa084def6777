// Package validation consumes card validation outcomes published by the
// external validator and applies them to customer aggregates.
package validation

import (
	"context"
	"encoding/json"
	"log/slog"

	"customerhub/internal/customer/models"
	"customerhub/internal/platform/kafka/consumer"
	dErrors "customerhub/pkg/domain-errors"
)

// Applier is satisfied by the customer service.
type Applier interface {
	ApplyCardValidation(ctx context.Context, outcome models.CardValidationOutcome) (*models.CustomerView, error)
}

// Handler decodes outcome messages. Messages that can never succeed are
// logged and skipped; anything else is returned so the consumer retries.
type Handler struct {
	applier Applier
	logger  *slog.Logger
}

func NewHandler(applier Applier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{applier: applier, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var outcome models.CardValidationOutcome
	if err := json.Unmarshal(msg.Value, &outcome); err != nil {
		h.skip(ctx, msg, "undecodable validation outcome", err)
		return nil
	}
	if outcome.CustomerID.IsNil() || outcome.CardID.IsNil() {
		h.skip(ctx, msg, "validation outcome missing identifiers", nil)
		return nil
	}

	if _, err := h.applier.ApplyCardValidation(ctx, outcome); err != nil {
		if permanent(err) {
			h.skip(ctx, msg, "validation outcome rejected", err)
			return nil
		}
		return err
	}
	h.logger.InfoContext(ctx, "card validation outcome applied",
		"customer_id", outcome.CustomerID.String(),
		"card_id", outcome.CardID.String(),
		"approved", outcome.Approved,
	)
	return nil
}

func (h *Handler) skip(ctx context.Context, msg *consumer.Message, reason string, err error) {
	attrs := []any{"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	h.logger.WarnContext(ctx, reason, attrs...)
}

// permanent reports whether retrying err can never help. Version conflicts
// and infrastructure failures are retried.
func permanent(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest,
		dErrors.CodeInvalidInput,
		dErrors.CodeValidation,
		dErrors.CodeInvariantViolation,
		dErrors.CodeInvalidState,
		dErrors.CodeNotFound:
		return true
	default:
		return false
	}
}
