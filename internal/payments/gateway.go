// Package payments integrates with Stripe: it creates hosted checkout
// sessions for payable entities and reconciles their payment status from
// Stripe webhook events.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
)

var ErrGateway = errors.New("payment gateway error")

const checkoutCurrency = "gbp"

// Metadata keys attached to every checkout session so webhook events can be
// resolved back to the entity that opened them.
const (
	metaType        = "type"
	metaTypeEntry   = "entry"
	metaTypeOrder   = "order"
	metaEntryID     = "entry_id"
	metaOrderID     = "order_id"
	metaEvent       = "event"
	metaOrderNumber = "order_number"
)

// EntrySessionStore persists the session id Stripe assigns to an entry.
type EntrySessionStore interface {
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
}

// OrderSessionStore persists the session id Stripe assigns to an order.
type OrderSessionStore interface {
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
}

type GatewayConfig struct {
	SecretKey   string
	FrontendURL string
}

// Gateway builds and submits Stripe Checkout sessions. It holds no locks
// around the outbound call; a slow Stripe response stalls only the request
// that triggered it.
type Gateway struct {
	frontendURL string
	entries     EntrySessionStore
	orders      OrderSessionStore

	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewGateway(cfg GatewayConfig, entries EntrySessionStore, orders OrderSessionStore) *Gateway {
	stripe.Key = cfg.SecretKey
	return &Gateway{
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
		entries:       entries,
		orders:        orders,
		createSession: session.New,
	}
}

// CheckoutSession is the slice of the Stripe session the rest of the system
// needs: the correlation id and the URL to redirect the customer to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func pence(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func eventDisplayName(event string) (name, slug string) {
	if strings.Contains(event, "KENT") {
		return "Kent Nines", "kent-nines"
	}
	return "Essex Nines", "essex-nines"
}

func (g *Gateway) entrySessionParams(e *entry.Entry) *stripe.CheckoutSessionParams {
	eventName, slug := eventDisplayName(e.Event)
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.frontendURL + "/events/" + slug + "?entered=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(g.frontendURL + "/events/" + slug + "#enter"),
		CustomerEmail: stripe.String(e.Player1Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(checkoutCurrency),
					UnitAmount: stripe.Int64(pence(e.EntryFee)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(eventName + " Entry"),
						Description: stripe.String(fmt.Sprintf("Pair entry: %s & %s (%s)", e.Player1Name, e.Player2Name, e.ClubName)),
					},
				},
			},
		},
	}
	params.AddMetadata(metaType, metaTypeEntry)
	params.AddMetadata(metaEntryID, e.ID.String())
	params.AddMetadata(metaEvent, e.Event)
	return params
}

func (g *Gateway) orderSessionParams(o *order.Order) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.frontendURL + "/cart?success=true&order=" + o.OrderNumber),
		CancelURL:     stripe.String(g.frontendURL + "/cart"),
		CustomerEmail: stripe.String(o.CustomerEmail),
	}
	for _, item := range o.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(checkoutCurrency),
				UnitAmount: stripe.Int64(pence(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
				},
			},
		})
	}
	if o.ShippingCost > 0 {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(checkoutCurrency),
				UnitAmount: stripe.Int64(pence(o.ShippingCost)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("UK Shipping"),
				},
			},
		})
	}
	params.AddMetadata(metaType, metaTypeOrder)
	params.AddMetadata(metaOrderID, o.ID.String())
	params.AddMetadata(metaOrderNumber, o.OrderNumber)
	return params
}

// CreateEntrySession opens a checkout session for a competition entry and
// stores the session id against the entry (last write wins).
func (g *Gateway) CreateEntrySession(ctx context.Context, e *entry.Entry) (*CheckoutSession, error) {
	params := g.entrySessionParams(e)
	params.Context = ctx

	s, err := g.createSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create entry checkout session: %v", ErrGateway, err)
	}
	if err := g.entries.SetStripeSession(ctx, e.ID, s.ID); err != nil {
		return nil, fmt.Errorf("save session id for entry %s: %w", e.ID, err)
	}
	log.Info().Str("session_id", s.ID).Stringer("entry_id", e.ID).Msg("created stripe checkout session for entry")
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// CreateOrderSession opens a checkout session for a shop order and stores
// the session id against the order (last write wins).
func (g *Gateway) CreateOrderSession(ctx context.Context, o *order.Order) (*CheckoutSession, error) {
	params := g.orderSessionParams(o)
	params.Context = ctx

	s, err := g.createSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create order checkout session: %v", ErrGateway, err)
	}
	if err := g.orders.SetStripeSession(ctx, o.ID, s.ID); err != nil {
		return nil, fmt.Errorf("save session id for order %s: %w", o.ID, err)
	}
	log.Info().Str("session_id", s.ID).Str("order_number", o.OrderNumber).Msg("created stripe checkout session for order")
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}
