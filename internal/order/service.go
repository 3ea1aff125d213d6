package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/pricing"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// allowedTransitions is the order state machine. PENDING -> PAID comes from
// the payment reconciliation path; everything past PAID is administrative
// fulfilment. Every non-terminal state can be cancelled or refunded.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusCancelled: true,
		StatusRefunded:  true,
	},
	StatusPaid: {
		StatusProcessing: true,
		StatusCancelled:  true,
		StatusRefunded:   true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCollected: true,
		StatusCancelled: true,
		StatusRefunded:  true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
		StatusRefunded:  true,
	},
	StatusDelivered: {},
	StatusCollected: {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// Notifier publishes a confirmation event after an order is first marked
// paid. Implementations must not block the caller on broker availability.
type Notifier interface {
	OrderPaid(ctx context.Context, o *Order)
}

type Service interface {
	Create(ctx context.Context, o *Order) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	ListToFulfill(ctx context.Context) ([]Order, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	TotalRevenue(ctx context.Context) (float64, error)
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Order, error)
}

type service struct {
	repo     Repository
	calc     *pricing.Calculator
	notifier Notifier
}

// NewService wires the order service. notifier may be nil when no broker is
// configured.
func NewService(repo Repository, calc *pricing.Calculator, notifier Notifier) Service {
	return &service{repo: repo, calc: calc, notifier: notifier}
}

func validateOrder(o *Order) error {
	if strings.TrimSpace(o.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidOrder)
	}
	if !strings.Contains(o.CustomerEmail, "@") {
		return fmt.Errorf("%w: customer email is not valid", ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}
	for _, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" || strings.TrimSpace(item.ProductName) == "" {
			return fmt.Errorf("%w: order items must name a product", ErrInvalidOrder)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for %s must be at least 1", ErrInvalidOrder, item.ProductID)
		}
		if item.UnitPrice < 0.01 {
			return fmt.Errorf("%w: unit price for %s must be at least 0.01", ErrInvalidOrder, item.ProductID)
		}
	}
	switch o.DeliveryMethod {
	case DeliveryCollection:
	case DeliveryShipping:
		if strings.TrimSpace(o.ShippingAddress) == "" || strings.TrimSpace(o.ShippingCity) == "" ||
			strings.TrimSpace(o.ShippingPostcode) == "" {
			return fmt.Errorf("%w: shipping orders require a full delivery address", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown delivery method %q", ErrInvalidOrder, o.DeliveryMethod)
	}
	return nil
}

// newOrderNumber builds a human-facing order reference. The random suffix
// narrows the collision window between two orders placed in the same
// millisecond; the unique index on order_number is the real guard.
func newOrderNumber() (string, error) {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate order number suffix: %w", err)
	}
	return fmt.Sprintf("NN-%d-%X", time.Now().UnixMilli(), suffix), nil
}

func (s *service) Create(ctx context.Context, o *Order) (*Order, error) {
	if err := validateOrder(o); err != nil {
		return nil, err
	}

	subtotal := 0.0
	for _, item := range o.Items {
		subtotal += item.LineTotal()
	}
	shippingCost, err := s.calc.ShippingCost(string(o.DeliveryMethod), subtotal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	orderNumber, err := newOrderNumber()
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	o.ID = uuid.Nil
	o.OrderNumber = orderNumber
	o.Subtotal = subtotal
	o.ShippingCost = shippingCost
	o.Total = subtotal + shippingCost
	o.Status = StatusPending
	o.StripePaymentIntentID = ""
	o.StripeSessionID = ""
	o.PaidAt = nil
	o.FulfilledAt = nil

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateOrderNumber) {
			// Loud failure per the reconciliation rules. The customer
			// retries; we never reuse or overwrite a reference.
			log.Error().Str("order_number", o.OrderNumber).Msg("service: order number collision")
			return nil, ErrDuplicateOrderNumber
		}
		log.Error().Err(err).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).
		Str("customer_email", o.CustomerEmail).Float64("total", o.Total).Msg("service: order created")
	return o, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.repo.GetByOrderNumber(ctx, orderNumber)
}

func (s *service) GetByStripeSessionID(ctx context.Context, sessionID string) (*Order, error) {
	return s.repo.GetByStripeSessionID(ctx, sessionID)
}

func (s *service) List(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx)
}

func (s *service) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.repo.ListByStatus(ctx, status)
}

func (s *service) ListToFulfill(ctx context.Context) ([]Order, error) {
	return s.repo.ListToFulfill(ctx)
}

func (s *service) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return s.repo.CountByStatus(ctx, status)
}

func (s *service) TotalRevenue(ctx context.Context) (float64, error) {
	return s.repo.TotalRevenue(ctx)
}

func (s *service) SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return s.repo.SetStripeSession(ctx, id, sessionID)
}

// MarkPaid moves a pending order to PAID. Duplicate confirmations are a
// no-op success; terminal orders fail with ErrInvalidTransition.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*Order, error) {
	var applied bool
	o, err := s.repo.Transition(ctx, id, func(o *Order) (bool, error) {
		if o.Status == StatusPaid {
			return false, nil
		}
		if !allowedTransitions[o.Status][StatusPaid] {
			return false, fmt.Errorf("%w: cannot mark %s order as paid", ErrInvalidTransition, o.Status)
		}
		now := time.Now().UTC()
		o.Status = StatusPaid
		o.StripePaymentIntentID = paymentIntentID
		o.PaidAt = &now
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		log.Info().Stringer("order_id", id).Msg("service: order already paid, ignoring duplicate confirmation")
		return o, nil
	}

	log.Info().Stringer("order_id", id).Str("order_number", o.OrderNumber).
		Str("payment_intent_id", paymentIntentID).Msg("service: order marked as paid")
	if s.notifier != nil {
		s.notifier.OrderPaid(ctx, o)
	}
	return o, nil
}

// UpdateStatus applies an administrative fulfilment change. Entering
// DELIVERED or COLLECTED stamps fulfilledAt.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Order, error) {
	if newStatus == StatusPaid {
		return nil, fmt.Errorf("%w: use MarkPaid to record a payment", ErrInvalidTransition)
	}
	o, err := s.repo.Transition(ctx, id, func(o *Order) (bool, error) {
		if o.Status == newStatus {
			return false, nil
		}
		if !allowedTransitions[o.Status][newStatus] {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
		}
		o.Status = newStatus
		if newStatus == StatusDelivered || newStatus == StatusCollected {
			now := time.Now().UTC()
			o.FulfilledAt = &now
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("order_id", id).Str("order_number", o.OrderNumber).
		Stringer("status", o.Status).Msg("service: order status updated")
	return o, nil
}
