package pricing_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nationalninesgolf/api/internal/pricing"
)

func TestCalculator_EntryFee(t *testing.T) {
	calc := pricing.NewCalculator(pricing.DefaultConfig())

	tests := []struct {
		name      string
		event     string
		wantFee   float64
		wantErrIs error
	}{
		{name: "kent", event: "KENT_NINES_2026", wantFee: 150.00},
		{name: "essex", event: "ESSEX_NINES_2026", wantFee: 50.00},
		{name: "unknown_event", event: "SURREY_NINES_2026", wantErrIs: pricing.ErrUnknownEvent},
		{name: "empty_event", event: "", wantErrIs: pricing.ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := calc.EntryFee(tt.event)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantFee, fee)
		})
	}
}

func TestCalculator_ShippingCost(t *testing.T) {
	calc := pricing.NewCalculator(pricing.DefaultConfig())

	tests := []struct {
		name      string
		method    string
		subtotal  float64
		wantCost  float64
		wantErrIs error
	}{
		{name: "collection_is_free", method: pricing.DeliveryCollection, subtotal: 200, wantCost: 0},
		{name: "collection_zero_subtotal", method: pricing.DeliveryCollection, subtotal: 0, wantCost: 0},
		{name: "small_tier_upper_edge", method: pricing.DeliveryShipping, subtotal: 29.99, wantCost: 5.00},
		{name: "medium_tier_lower_edge", method: pricing.DeliveryShipping, subtotal: 30.00, wantCost: 10.00},
		{name: "medium_tier_upper_edge", method: pricing.DeliveryShipping, subtotal: 74.99, wantCost: 10.00},
		{name: "large_tier_lower_edge", method: pricing.DeliveryShipping, subtotal: 75.00, wantCost: 15.00},
		{name: "large_tier", method: pricing.DeliveryShipping, subtotal: 250.00, wantCost: 15.00},
		{name: "unknown_method", method: "DRONE", subtotal: 10, wantErrIs: pricing.ErrUnknownDeliveryMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, err := calc.ShippingCost(tt.method, tt.subtotal)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantCost, cost)
		})
	}
}
