package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/order"
)

// OrderHandler handles HTTP requests for shop orders.
type OrderHandler struct {
	svc     order.Service
	gateway CheckoutGateway
}

func NewOrderHandler(svc order.Service, gateway CheckoutGateway) *OrderHandler {
	return &OrderHandler{svc: svc, gateway: gateway}
}

// Create places a new order and returns it together with the Stripe
// checkout URL.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var o order.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	created, err := h.svc.Create(ctx, &o)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	session, err := h.gateway.CreateOrderSession(ctx, created)
	if err != nil {
		log.Error().Err(err).Str("order_number", created.OrderNumber).Msg("failed to create order checkout session")
		respondWithError(w, mapErrorToStatusCode(err), "payment system error, please try again")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"order":        created,
		"checkout_url": session.URL,
	})
}

// GetByOrderNumber returns a single order by its public reference.
func (h *OrderHandler) GetByOrderNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetByOrderNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

// GetStatus returns just the order status, for customer tracking pages.
func (h *OrderHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetByOrderNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"order_number": o.OrderNumber,
		"status":       string(o.Status),
	})
}
