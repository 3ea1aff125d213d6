package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/cache"
	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
	"github.com/nationalninesgolf/api/internal/payments"
)

// CheckoutGateway creates hosted checkout sessions for payable entities.
type CheckoutGateway interface {
	CreateEntrySession(ctx context.Context, e *entry.Entry) (*payments.CheckoutSession, error)
	CreateOrderSession(ctx context.Context, o *order.Order) (*payments.CheckoutSession, error)
}

// EntryHandler handles HTTP requests for competition entries.
type EntryHandler struct {
	svc     entry.Service
	gateway CheckoutGateway
	counts  *cache.Counts
}

func NewEntryHandler(svc entry.Service, gateway CheckoutGateway, counts *cache.Counts) *EntryHandler {
	return &EntryHandler{svc: svc, gateway: gateway, counts: counts}
}

// Create submits a new competition entry and returns it together with the
// Stripe checkout URL the customer is redirected to. A gateway failure
// leaves the PENDING entry in place; the customer re-initiates payment.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var e entry.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	created, err := h.svc.Create(ctx, &e)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}

	session, err := h.gateway.CreateEntrySession(ctx, created)
	if err != nil {
		log.Error().Err(err).Stringer("entry_id", created.ID).Msg("failed to create entry checkout session")
		respondWithError(w, mapErrorToStatusCode(err), "payment system error, please try again")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"entry":        created,
		"checkout_url": session.URL,
	})
}

// GetByID returns a single entry.
func (h *EntryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	e, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

// ListByEvent returns all entries for an event.
func (h *EntryHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListByEvent(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// ListPaidByEvent returns paid entries for an event (the public list).
func (h *EntryHandler) ListPaidByEvent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListPaidByEvent(r.Context(), chi.URLParam(r, "event"))
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// CountPaidByEvent returns the paid entry count for an event. The public
// site polls this for its sold-out banner, so the count is cached briefly.
func (h *EntryHandler) CountPaidByEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := chi.URLParam(r, "event")

	if n, ok := h.counts.Get(ctx, event); ok {
		respondWithJSON(w, http.StatusOK, map[string]int64{"count": n})
		return
	}

	n, err := h.svc.CountPaidByEvent(ctx, event)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	h.counts.Set(ctx, event, n)
	respondWithJSON(w, http.StatusOK, map[string]int64{"count": n})
}
