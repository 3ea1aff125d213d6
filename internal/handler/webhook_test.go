package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/handler"
	"github.com/nationalninesgolf/api/internal/order"
	"github.com/nationalninesgolf/api/internal/payments"
)

type stubProcessor struct {
	err        error
	gotPayload []byte
	gotSig     string
}

func (s *stubProcessor) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	s.gotPayload = payload
	s.gotSig = sigHeader
	return s.err
}

func TestWebhookHandler_HandleStripe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "processed",
			err:        nil,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"processed"}`,
		},
		{
			name:       "bad_signature_never_retried",
			err:        payments.ErrInvalidSignature,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed_event_never_retried",
			err:        payments.ErrMalformedEvent,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "entry_terminal_state_acked",
			err:        fmt.Errorf("mark entry paid: %w", entry.ErrInvalidTransition),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ignored"}`,
		},
		{
			name:       "order_terminal_state_acked",
			err:        fmt.Errorf("mark order paid: %w", order.ErrInvalidTransition),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ignored"}`,
		},
		{
			name:       "transient_failure_retried",
			err:        fmt.Errorf("mark entry paid: %w", context.DeadlineExceeded),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &stubProcessor{err: tt.err}
			h := handler.NewWebhookHandler(processor)

			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rr := httptest.NewRecorder()
			h.HandleStripe(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rr.Body.String())
			}
			// The processor must see the exact bytes and header.
			assert.Equal(t, []byte(`{"id":"evt_1"}`), processor.gotPayload)
			assert.Equal(t, "t=1,v1=abc", processor.gotSig)
		})
	}
}
