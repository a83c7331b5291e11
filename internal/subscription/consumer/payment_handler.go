// Package consumer adapts payment confirmation records from Kafka to the
// subscription service.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"dealerhub/internal/platform/kafka/consumer"
	"dealerhub/internal/subscription/models"
	id "dealerhub/pkg/domain"
	dErrors "dealerhub/pkg/domain-errors"
)

// PaymentService applies a confirmed payment.
type PaymentService interface {
	OnPaymentConfirmed(ctx context.Context, evt models.PaymentConfirmation) error
}

// PaymentHandler decodes payment confirmations. Malformed or permanently
// invalid records are logged and committed; transient failures are returned
// so the consumer retries them.
type PaymentHandler struct {
	service PaymentService
	logger  *slog.Logger
}

func NewPaymentHandler(service PaymentService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{service: service, logger: logger}
}

type paymentPayload struct {
	AccountID        string `json:"account_id"`
	PlanID           string `json:"plan_id"`
	IsYearly         bool   `json:"is_yearly"`
	PaymentReference string `json:"payment_reference"`
}

func (h *PaymentHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload paymentPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "CRITICAL: failed to unmarshal payment confirmation",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if payload.PaymentReference == "" {
		payload.PaymentReference = string(msg.Key)
	}
	accountID, err := id.ParseAccountID(payload.AccountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "CRITICAL: payment confirmation has invalid account id",
			"payment_reference", payload.PaymentReference,
			"error", err,
		)
		return nil
	}

	err = h.service.OnPaymentConfirmed(ctx, models.PaymentConfirmation{
		AccountID:        accountID,
		PlanID:           payload.PlanID,
		IsYearly:         payload.IsYearly,
		PaymentReference: id.PaymentReference(payload.PaymentReference),
	})
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		h.logger.ErrorContext(ctx, "CRITICAL: payment confirmation rejected",
			"payment_reference", payload.PaymentReference,
			"account_id", accountID,
			"error", err,
		)
		return nil
	}
	return err
}

func isPermanent(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeNotFound)
}
