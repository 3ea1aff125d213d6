// Package pricing holds the fixed entry-fee and shipping rules for the
// National Nines events and shop. All amounts are in pounds sterling.
package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEvent          = errors.New("unknown event")
	ErrUnknownDeliveryMethod = errors.New("unknown delivery method")
)

// Delivery methods accepted by ShippingCost.
const (
	DeliveryCollection = "COLLECTION"
	DeliveryShipping   = "SHIPPING"
)

// Config carries the pricing constants. It is populated once at startup and
// passed into NewCalculator; nothing in this package reads global state.
type Config struct {
	KentFee  float64
	EssexFee float64

	// Shipping tiers by order subtotal: [0, MediumFrom) -> Small,
	// [MediumFrom, LargeFrom) -> Medium, [LargeFrom, inf) -> Large.
	ShippingSmall  float64
	ShippingMedium float64
	ShippingLarge  float64
	MediumFrom     float64
	LargeFrom      float64
}

// DefaultConfig returns the published 2026 season rates.
func DefaultConfig() Config {
	return Config{
		KentFee:        150.00,
		EssexFee:       50.00,
		ShippingSmall:  5.00,
		ShippingMedium: 10.00,
		ShippingLarge:  15.00,
		MediumFrom:     30.00,
		LargeFrom:      75.00,
	}
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// EntryFee returns the fixed pair entry fee for an event. Event identifiers
// look like "KENT_NINES_2026"; matching is on the county token so the fee
// survives a season rollover in the identifier.
func (c *Calculator) EntryFee(event string) (float64, error) {
	switch {
	case strings.Contains(event, "KENT"):
		return c.cfg.KentFee, nil
	case strings.Contains(event, "ESSEX"):
		return c.cfg.EssexFee, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// ShippingCost returns the shipping charge for an order subtotal. Collection
// orders always ship free.
func (c *Calculator) ShippingCost(deliveryMethod string, subtotal float64) (float64, error) {
	switch deliveryMethod {
	case DeliveryCollection:
		return 0, nil
	case DeliveryShipping:
		switch {
		case subtotal < c.cfg.MediumFrom:
			return c.cfg.ShippingSmall, nil
		case subtotal < c.cfg.LargeFrom:
			return c.cfg.ShippingMedium, nil
		default:
			return c.cfg.ShippingLarge, nil
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDeliveryMethod, deliveryMethod)
	}
}
