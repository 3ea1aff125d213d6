package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
	"github.com/nationalninesgolf/api/internal/payments"
	"github.com/nationalninesgolf/api/internal/pricing"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, entry.ErrNotFound), errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entry.ErrDuplicateClub), errors.Is(err, order.ErrDuplicateOrderNumber):
		return http.StatusConflict
	case errors.Is(err, entry.ErrInvalidTransition), errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, entry.ErrInvalidEntry), errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, pricing.ErrUnknownEvent), errors.Is(err, pricing.ErrUnknownDeliveryMethod):
		return http.StatusBadRequest
	case errors.Is(err, payments.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithMappedError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}
