package transport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nationalninesgolf/api/internal/cache"
	"github.com/nationalninesgolf/api/internal/config"
	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/handler"
	"github.com/nationalninesgolf/api/internal/notify"
	"github.com/nationalninesgolf/api/internal/order"
	"github.com/nationalninesgolf/api/internal/payments"
	"github.com/nationalninesgolf/api/internal/pricing"
)

// entryPaidFanout forwards a paid entry to every interested notifier: the
// broker publisher and the count cache invalidation.
type entryPaidFanout []entry.Notifier

func (f entryPaidFanout) EntryPaid(ctx context.Context, e *entry.Entry) {
	for _, n := range f {
		n.EntryPaid(ctx, e)
	}
}

type countInvalidator struct {
	counts *cache.Counts
}

func (c countInvalidator) EntryPaid(ctx context.Context, e *entry.Entry) {
	c.counts.Invalidate(ctx, e.Event)
}

// NewRouter assembles the full service graph and mounts the routes.
func NewRouter(pool *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *chi.Mux {
	calc := pricing.NewCalculator(cfg.Pricing)

	counts := cache.NewCounts(rdb, cfg.Redis.CountTTL)

	entryNotifiers := entryPaidFanout{countInvalidator{counts: counts}}
	var orderNotifier order.Notifier
	if cfg.AMQP.URL != "" {
		pub := notify.NewPublisher(cfg.AMQP.URL)
		entryNotifiers = append(entryNotifiers, pub)
		orderNotifier = pub
	}

	entrySvc := entry.NewService(entry.NewRepository(pool), calc, entryNotifiers)
	orderSvc := order.NewService(order.NewRepository(pool), calc, orderNotifier)

	gateway := payments.NewGateway(payments.GatewayConfig{
		SecretKey:   cfg.Stripe.SecretKey,
		FrontendURL: cfg.App.FrontendURL,
	}, entrySvc, orderSvc)
	processor := payments.NewProcessor(cfg.Stripe.WebhookSecret, entrySvc, orderSvc)

	entryHandler := handler.NewEntryHandler(entrySvc, gateway, counts)
	orderHandler := handler.NewOrderHandler(orderSvc, gateway)
	webhookHandler := handler.NewWebhookHandler(processor)
	adminHandler := handler.NewAdminHandler(entrySvc, orderSvc)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", entryHandler.Create)
			r.Get("/{id}", entryHandler.GetByID)
			r.Get("/event/{event}", entryHandler.ListByEvent)
			r.Get("/event/{event}/paid", entryHandler.ListPaidByEvent)
			r.Get("/event/{event}/count", entryHandler.CountPaidByEvent)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Get("/{orderNumber}", orderHandler.GetByOrderNumber)
			r.Get("/{orderNumber}/status", orderHandler.GetStatus)
		})

		r.Post("/webhooks/stripe", webhookHandler.HandleStripe)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/entries", adminHandler.ListEntries)
			r.Post("/entries/{id}/mark-paid", adminHandler.MarkEntryPaid)
			r.Post("/entries/{id}/status", adminHandler.UpdateEntryStatus)
			r.Get("/orders", adminHandler.ListOrders)
			r.Get("/orders/status/{status}", adminHandler.ListOrdersByStatus)
			r.Get("/orders/to-fulfill", adminHandler.ListOrdersToFulfill)
			r.Post("/orders/{id}/mark-paid", adminHandler.MarkOrderPaid)
			r.Post("/orders/{id}/status", adminHandler.UpdateOrderStatus)
			r.Get("/dashboard", adminHandler.Dashboard)
		})
	})

	return r
}
