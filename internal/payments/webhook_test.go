package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
)

const testWebhookSecret = "whsec_test"

type mockEntryMarker struct {
	markPaidFunc     func(ctx context.Context, id uuid.UUID, paymentIntentID string) (*entry.Entry, error)
	getBySessionFunc func(ctx context.Context, sessionID string) (*entry.Entry, error)
	markPaidCalls    int
}

func (m *mockEntryMarker) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*entry.Entry, error) {
	m.markPaidCalls++
	return m.markPaidFunc(ctx, id, paymentIntentID)
}

func (m *mockEntryMarker) GetByStripeSessionID(ctx context.Context, sessionID string) (*entry.Entry, error) {
	return m.getBySessionFunc(ctx, sessionID)
}

type mockOrderMarker struct {
	markPaidFunc     func(ctx context.Context, id uuid.UUID, paymentIntentID string) (*order.Order, error)
	getBySessionFunc func(ctx context.Context, sessionID string) (*order.Order, error)
	markPaidCalls    int
}

func (m *mockOrderMarker) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*order.Order, error) {
	m.markPaidCalls++
	return m.markPaidFunc(ctx, id, paymentIntentID)
}

func (m *mockOrderMarker) GetByStripeSessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	return m.getBySessionFunc(ctx, sessionID)
}

// signPayload builds the Stripe-Signature header the same way Stripe does:
// an HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object))
}

func TestProcessor_Handle_RejectsBadSignature(t *testing.T) {
	entries := &mockEntryMarker{}
	orders := &mockOrderMarker{}
	p := NewProcessor(testWebhookSecret, entries, orders)

	payload := eventPayload(eventCheckoutCompleted, `{"id":"cs_1"}`)

	tests := []struct {
		name   string
		header string
	}{
		{name: "wrong_secret", header: signPayload("whsec_other", payload, time.Now())},
		{name: "stale_timestamp", header: signPayload(testWebhookSecret, payload, time.Now().Add(-time.Hour))},
		{name: "garbage_header", header: "t=abc,v1=def"},
		{name: "empty_header", header: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Handle(context.Background(), payload, tt.header)
			assert.True(t, errors.Is(err, ErrInvalidSignature), "got error %v", err)
		})
	}
	assert.Equal(t, 0, entries.markPaidCalls)
	assert.Equal(t, 0, orders.markPaidCalls)
}

func TestProcessor_Handle_EntryCheckoutCompleted(t *testing.T) {
	entryID := uuid.Must(uuid.NewV4())

	var gotID uuid.UUID
	var gotIntent string
	entries := &mockEntryMarker{
		markPaidFunc: func(ctx context.Context, id uuid.UUID, paymentIntentID string) (*entry.Entry, error) {
			gotID, gotIntent = id, paymentIntentID
			return &entry.Entry{ID: id, PaymentStatus: entry.StatusPaid}, nil
		},
	}
	orders := &mockOrderMarker{}
	p := NewProcessor(testWebhookSecret, entries, orders)

	object := fmt.Sprintf(`{"id":"cs_entry","payment_intent":"pi_42","metadata":{"type":"entry","entry_id":%q,"event":"KENT_NINES_2026"}}`, entryID)
	payload := eventPayload(eventCheckoutCompleted, object)

	err := p.Handle(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, entryID, gotID)
	assert.Equal(t, "pi_42", gotIntent)
	assert.Equal(t, 1, entries.markPaidCalls)
	assert.Equal(t, 0, orders.markPaidCalls)
}

func TestProcessor_Handle_OrderCheckoutCompleted(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	var gotID uuid.UUID
	var gotIntent string
	entries := &mockEntryMarker{}
	orders := &mockOrderMarker{
		markPaidFunc: func(ctx context.Context, id uuid.UUID, paymentIntentID string) (*order.Order, error) {
			gotID, gotIntent = id, paymentIntentID
			return &order.Order{ID: id, Status: order.StatusPaid}, nil
		},
	}
	p := NewProcessor(testWebhookSecret, entries, orders)

	object := fmt.Sprintf(`{"id":"cs_order","payment_intent":"pi_77","metadata":{"type":"order","order_id":%q,"order_number":"NN-1"}}`, orderID)
	payload := eventPayload(eventCheckoutCompleted, object)

	err := p.Handle(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, orderID, gotID)
	assert.Equal(t, "pi_77", gotIntent)
	assert.Equal(t, 1, orders.markPaidCalls)
	assert.Equal(t, 0, entries.markPaidCalls)
}

func TestProcessor_Handle_FallsBackToSessionLookup(t *testing.T) {
	entryID := uuid.Must(uuid.NewV4())

	var lookedUp string
	entries := &mockEntryMarker{
		getBySessionFunc: func(ctx context.Context, sessionID string) (*entry.Entry, error) {
			lookedUp = sessionID
			return &entry.Entry{ID: entryID}, nil
		},
		markPaidFunc: func(ctx context.Context, id uuid.UUID, paymentIntentID string) (*entry.Entry, error) {
			assert.Equal(t, entryID, id)
			return &entry.Entry{ID: id}, nil
		},
	}
	p := NewProcessor(testWebhookSecret, entries, &mockOrderMarker{})

	// Metadata says entry but carries no usable id.
	object := `{"id":"cs_fallback","metadata":{"type":"entry"}}`
	payload := eventPayload(eventCheckoutCompleted, object)

	err := p.Handle(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "cs_fallback", lookedUp)
	assert.Equal(t, 1, entries.markPaidCalls)
}

func TestProcessor_Handle_SessionLookupMiss(t *testing.T) {
	entries := &mockEntryMarker{
		getBySessionFunc: func(ctx context.Context, sessionID string) (*entry.Entry, error) {
			return nil, entry.ErrNotFound
		},
	}
	p := NewProcessor(testWebhookSecret, entries, &mockOrderMarker{})

	object := `{"id":"cs_unknown","metadata":{"type":"entry"}}`
	payload := eventPayload(eventCheckoutCompleted, object)

	err := p.Handle(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	assert.True(t, errors.Is(err, entry.ErrNotFound))
	assert.Equal(t, 0, entries.markPaidCalls)
}

func TestProcessor_Handle_IgnoredEvents(t *testing.T) {
	entries := &mockEntryMarker{}
	orders := &mockOrderMarker{}
	p := NewProcessor(testWebhookSecret, entries, orders)

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "payment_intent_succeeded", payload: eventPayload(eventPaymentSucceeded, `{"id":"pi_1"}`)},
		{name: "payment_intent_failed", payload: eventPayload(eventPaymentFailed, `{"id":"pi_2"}`)},
		{name: "unrelated_event_type", payload: eventPayload("invoice.created", `{"id":"in_1"}`)},
		{name: "session_without_metadata", payload: eventPayload(eventCheckoutCompleted, `{"id":"cs_bare"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Handle(context.Background(), tt.payload, signPayload(testWebhookSecret, tt.payload, time.Now()))
			assert.NoError(t, err)
		})
	}
	assert.Equal(t, 0, entries.markPaidCalls)
	assert.Equal(t, 0, orders.markPaidCalls)
}
