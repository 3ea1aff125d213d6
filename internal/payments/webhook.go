package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// The closed set of Stripe event kinds this processor recognizes. Anything
// else is acknowledged and dropped, so Stripe does not retry events we will
// never act on.
const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventPaymentSucceeded  = "payment_intent.succeeded"
	eventPaymentFailed     = "payment_intent.payment_failed"
)

// EntryMarker is the slice of the entry service the processor dispatches to.
type EntryMarker interface {
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*entry.Entry, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*entry.Entry, error)
}

// OrderMarker is the slice of the order service the processor dispatches to.
type OrderMarker interface {
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*order.Order, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*order.Order, error)
}

// Processor verifies and dispatches Stripe webhook deliveries. Deliveries
// are at-least-once, unordered and possibly concurrent; all idempotency
// lives behind the MarkPaid calls, so the processor itself keeps no state.
type Processor struct {
	secret  string
	entries EntryMarker
	orders  OrderMarker
}

func NewProcessor(webhookSecret string, entries EntryMarker, orders OrderMarker) *Processor {
	return &Processor{secret: webhookSecret, entries: entries, orders: orders}
}

// Handle verifies the signature over the exact raw bytes received and
// dispatches the event. A signature failure returns ErrInvalidSignature
// before anything else is touched.
func (p *Processor) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.secret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	log.Info().Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("received stripe webhook")

	switch string(event.Type) {
	case eventCheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, event)
	case eventPaymentSucceeded:
		// Informational; the checkout.session.completed event carries the
		// metadata we reconcile on.
		log.Debug().Str("event_id", event.ID).Msg("payment intent succeeded")
		return nil
	case eventPaymentFailed:
		// Log only. A paid entity is never moved backwards from the
		// webhook path; a failed pending payment stays PENDING until the
		// customer retries or an admin cancels.
		log.Warn().Str("event_id", event.ID).Msg("payment intent failed")
		return nil
	default:
		log.Debug().Str("event_type", string(event.Type)).Msg("unhandled stripe event type")
		return nil
	}
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("%w: decode checkout session: %v", ErrMalformedEvent, err)
	}

	paymentIntentID := ""
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}

	switch sess.Metadata[metaType] {
	case metaTypeEntry:
		id, err := p.resolveEntryID(ctx, sess)
		if err != nil {
			return err
		}
		if _, err := p.entries.MarkPaid(ctx, id, paymentIntentID); err != nil {
			return fmt.Errorf("mark entry %s paid: %w", id, err)
		}
		log.Info().Stringer("entry_id", id).Msg("entry payment completed")
		return nil
	case metaTypeOrder:
		id, err := p.resolveOrderID(ctx, sess)
		if err != nil {
			return err
		}
		if _, err := p.orders.MarkPaid(ctx, id, paymentIntentID); err != nil {
			return fmt.Errorf("mark order %s paid: %w", id, err)
		}
		log.Info().Str("order_number", sess.Metadata[metaOrderNumber]).Msg("order payment completed")
		return nil
	default:
		// A session we did not open (or opened before metadata was
		// attached): ack it, there is nothing to reconcile against.
		log.Warn().Str("session_id", sess.ID).Msg("checkout session completed without recognizable metadata")
		return nil
	}
}

// resolveEntryID prefers the internal id carried in the session metadata and
// falls back to the session id correlation key.
func (p *Processor) resolveEntryID(ctx context.Context, sess stripe.CheckoutSession) (uuid.UUID, error) {
	if raw := sess.Metadata[metaEntryID]; raw != "" {
		id, err := uuid.FromString(raw)
		if err == nil {
			return id, nil
		}
		log.Warn().Str("entry_id", raw).Str("session_id", sess.ID).Msg("malformed entry id in session metadata")
	}
	e, err := p.entries.GetByStripeSessionID(ctx, sess.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve entry for session %s: %w", sess.ID, err)
	}
	return e.ID, nil
}

func (p *Processor) resolveOrderID(ctx context.Context, sess stripe.CheckoutSession) (uuid.UUID, error) {
	if raw := sess.Metadata[metaOrderID]; raw != "" {
		id, err := uuid.FromString(raw)
		if err == nil {
			return id, nil
		}
		log.Warn().Str("order_id", raw).Str("session_id", sess.ID).Msg("malformed order id in session metadata")
	}
	o, err := p.orders.GetByStripeSessionID(ctx, sess.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve order for session %s: %w", sess.ID, err)
	}
	return o.ID, nil
}
