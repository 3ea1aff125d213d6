package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
	"github.com/nationalninesgolf/api/internal/payments"
)

// WebhookProcessor verifies and dispatches a raw Stripe webhook delivery.
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) error
}

// WebhookHandler exposes the Stripe webhook endpoint. The response status
// tells Stripe whether to retry: 2xx acknowledges, 4xx drops the delivery,
// 5xx asks for a retry.
type WebhookHandler struct {
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	// Signature verification needs the exact bytes Stripe sent, so the
	// body is read raw and never re-serialized.
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	err = h.processor.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	case errors.Is(err, payments.ErrInvalidSignature), errors.Is(err, payments.ErrMalformedEvent):
		log.Warn().Err(err).Msg("rejected stripe webhook")
		respondWithError(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, entry.ErrInvalidTransition), errors.Is(err, order.ErrInvalidTransition):
		// The entity is in a terminal state; a retry can never succeed.
		// Acknowledge and leave it for manual reconciliation.
		log.Warn().Err(err).Msg("webhook transition rejected, needs manual reconciliation")
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		log.Error().Err(err).Msg("failed to process stripe webhook")
		respondWithError(w, http.StatusInternalServerError, "webhook processing error")
	}
}
