package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
)

// manualPaymentIntentID marks transitions applied by an administrator for
// bank transfers, where no Stripe payment intent exists.
const manualPaymentIntentID = "MANUAL_PAYMENT"

// AdminHandler exposes the management endpoints. Authentication sits in
// front of these routes at the edge.
type AdminHandler struct {
	entries entry.Service
	orders  order.Service
}

func NewAdminHandler(entries entry.Service, orders order.Service) *AdminHandler {
	return &AdminHandler{entries: entries, orders: orders}
}

func (h *AdminHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.List(r.Context())
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// MarkEntryPaid records a manual payment (e.g. bank transfer) through the
// same transition path the webhook uses.
func (h *AdminHandler) MarkEntryPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	e, err := h.entries.MarkPaid(r.Context(), id, manualPaymentIntentID)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

// UpdateEntryStatus applies an administrative cancel/refund.
func (h *AdminHandler) UpdateEntryStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	status := entry.PaymentStatus(r.URL.Query().Get("status"))
	switch status {
	case entry.StatusPending, entry.StatusPaid, entry.StatusFailed, entry.StatusRefunded, entry.StatusCancelled:
	default:
		respondWithError(w, http.StatusBadRequest, "invalid payment status")
		return
	}
	e, err := h.entries.UpdateStatus(r.Context(), id, status)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := order.ParseStatus(chi.URLParam(r, "status"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid order status")
		return
	}
	orders, err := h.orders.ListByStatus(r.Context(), status)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

// ListOrdersToFulfill returns paid orders awaiting fulfilment, oldest first.
func (h *AdminHandler) ListOrdersToFulfill(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListToFulfill(r.Context())
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) MarkOrderPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.orders.MarkPaid(r.Context(), id, manualPaymentIntentID)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

// UpdateOrderStatus moves an order through fulfilment (or cancels/refunds
// it).
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	status, ok := order.ParseStatus(r.URL.Query().Get("status"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid order status")
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

// Dashboard aggregates the numbers the organizers check daily.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := map[string]interface{}{}

	for key, event := range map[string]string{
		"kent_nines_entries":  "KENT_NINES_2026",
		"essex_nines_entries": "ESSEX_NINES_2026",
	} {
		n, err := h.entries.CountPaidByEvent(ctx, event)
		if err != nil {
			respondWithMappedError(w, err)
			return
		}
		stats[key] = n
	}

	for key, status := range map[string]order.Status{
		"pending_orders":    order.StatusPending,
		"paid_orders":       order.StatusPaid,
		"processing_orders": order.StatusProcessing,
	} {
		n, err := h.orders.CountByStatus(ctx, status)
		if err != nil {
			respondWithMappedError(w, err)
			return
		}
		stats[key] = n
	}

	delivered, err := h.orders.CountByStatus(ctx, order.StatusDelivered)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	collected, err := h.orders.CountByStatus(ctx, order.StatusCollected)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	stats["fulfilled_orders"] = delivered + collected

	revenue, err := h.orders.TotalRevenue(ctx)
	if err != nil {
		respondWithMappedError(w, err)
		return
	}
	stats["total_revenue"] = revenue

	respondWithJSON(w, http.StatusOK, stats)
}
