package entry

import (
	"time"

	"github.com/gofrs/uuid"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusPaid      PaymentStatus = "PAID"
	StatusFailed    PaymentStatus = "FAILED"
	StatusRefunded  PaymentStatus = "REFUNDED"
	StatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// Entry is a pair entering Kent Nines or Essex Nines. The fee is fixed at
// creation time from the event and never recomputed afterwards.
type Entry struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Event    string    `json:"event" db:"event"`
	ClubName string    `json:"club_name" db:"club_name"`

	Player1Name     string  `json:"player1_name" db:"player1_name"`
	Player1Email    string  `json:"player1_email" db:"player1_email"`
	Player1Handicap float64 `json:"player1_handicap" db:"player1_handicap"`

	Player2Name     string  `json:"player2_name" db:"player2_name"`
	Player2Email    string  `json:"player2_email" db:"player2_email"`
	Player2Handicap float64 `json:"player2_handicap" db:"player2_handicap"`

	ContactPhone   string `json:"contact_phone" db:"contact_phone"`
	MarketingOptIn bool   `json:"marketing_opt_in" db:"marketing_opt_in"`

	PaymentStatus         PaymentStatus `json:"payment_status" db:"payment_status"`
	StripePaymentIntentID string        `json:"stripe_payment_intent_id,omitempty" db:"stripe_payment_intent_id"`
	StripeSessionID       string        `json:"stripe_session_id,omitempty" db:"stripe_session_id"`
	EntryFee              float64       `json:"entry_fee" db:"entry_fee"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty" db:"paid_at"`
}
