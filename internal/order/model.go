package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCollected  Status = "COLLECTED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a status string coming in over HTTP.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCollected, StatusCancelled, StatusRefunded:
		return Status(s), true
	}
	return "", false
}

type DeliveryMethod string

const (
	DeliveryCollection DeliveryMethod = "COLLECTION"
	DeliveryShipping   DeliveryMethod = "SHIPPING"
)

func (m DeliveryMethod) String() string {
	return string(m)
}

// OrderItem is a single line of a shop order. Items live and die with their
// order.
type OrderItem struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderID     uuid.UUID `json:"order_id" db:"order_id"`
	ProductID   string    `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
}

func (i OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Order is a shop order for golf equipment.
type Order struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderNumber string    `json:"order_number" db:"order_number"`

	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerEmail string `json:"customer_email" db:"customer_email"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`

	DeliveryMethod   DeliveryMethod `json:"delivery_method" db:"delivery_method"`
	ShippingAddress  string         `json:"shipping_address,omitempty" db:"shipping_address"`
	ShippingCity     string         `json:"shipping_city,omitempty" db:"shipping_city"`
	ShippingPostcode string         `json:"shipping_postcode,omitempty" db:"shipping_postcode"`

	Notes string `json:"notes,omitempty" db:"notes"`

	Items []OrderItem `json:"items" db:"-"`

	Subtotal     float64 `json:"subtotal" db:"subtotal"`
	ShippingCost float64 `json:"shipping_cost" db:"shipping_cost"`
	Total        float64 `json:"total" db:"total"`

	Status                Status `json:"status" db:"status"`
	StripePaymentIntentID string `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	StripeSessionID       string `json:"stripe_session_id,omitempty" db:"stripe_session_id"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty" db:"fulfilled_at"`
}
