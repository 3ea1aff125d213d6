package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/pricing"
)

var (
	ErrInvalidEntry      = errors.New("invalid entry")
	ErrInvalidTransition = errors.New("invalid entry status transition")
)

// allowedTransitions is the entry payment state machine. PENDING is the only
// state the webhook path ever moves forward; FAILED, CANCELLED and REFUNDED
// are reached administratively.
var allowedTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusRefunded: true,
	},
	StatusFailed:    {},
	StatusRefunded:  {},
	StatusCancelled: {},
}

// Notifier publishes a confirmation event after an entry is first marked
// paid. Implementations must not block the caller on broker availability.
type Notifier interface {
	EntryPaid(ctx context.Context, e *Entry)
}

type Service interface {
	Create(ctx context.Context, e *Entry) (*Entry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	ListByEvent(ctx context.Context, event string) ([]Entry, error)
	ListPaidByEvent(ctx context.Context, event string) ([]Entry, error)
	CountPaidByEvent(ctx context.Context, event string) (int64, error)
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*Entry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus PaymentStatus) (*Entry, error)
}

type service struct {
	repo     Repository
	calc     *pricing.Calculator
	notifier Notifier
}

// NewService wires the entry service. notifier may be nil when no broker is
// configured.
func NewService(repo Repository, calc *pricing.Calculator, notifier Notifier) Service {
	return &service{repo: repo, calc: calc, notifier: notifier}
}

func validateEntry(e *Entry) error {
	if strings.TrimSpace(e.ClubName) == "" {
		return fmt.Errorf("%w: club name is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.ContactPhone) == "" {
		return fmt.Errorf("%w: contact phone is required", ErrInvalidEntry)
	}
	for _, p := range []struct {
		label    string
		name     string
		email    string
		handicap float64
	}{
		{"player1", e.Player1Name, e.Player1Email, e.Player1Handicap},
		{"player2", e.Player2Name, e.Player2Email, e.Player2Handicap},
	} {
		if strings.TrimSpace(p.name) == "" {
			return fmt.Errorf("%w: %s name is required", ErrInvalidEntry, p.label)
		}
		if !strings.Contains(p.email, "@") {
			return fmt.Errorf("%w: %s email is not valid", ErrInvalidEntry, p.label)
		}
		if p.handicap < 0 || p.handicap > 54 {
			return fmt.Errorf("%w: %s handicap must be between 0 and 54", ErrInvalidEntry, p.label)
		}
	}
	return nil
}

func (s *service) Create(ctx context.Context, e *Entry) (*Entry, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}

	fee, err := s.calc.EntryFee(e.Event)
	if err != nil {
		return nil, err
	}

	// Fast, non-authoritative rejection. The unique constraint on
	// (event, club_name) is what actually guards against a concurrent
	// duplicate submission.
	exists, err := s.repo.ExistsByEventAndClub(ctx, e.Event, e.ClubName)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check existing club entry: %w", err)
	}
	if exists {
		return nil, ErrDuplicateClub
	}

	e.ID = uuid.Nil
	e.EntryFee = fee
	e.PaymentStatus = StatusPending
	e.StripePaymentIntentID = ""
	e.StripeSessionID = ""
	e.PaidAt = nil

	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicateClub) {
			return nil, ErrDuplicateClub
		}
		log.Error().Err(err).Str("event", e.Event).Str("club_name", e.ClubName).Msg("service: failed to create entry")
		return nil, fmt.Errorf("service: failed to create entry: %w", err)
	}

	log.Info().Stringer("entry_id", e.ID).Str("event", e.Event).Str("club_name", e.ClubName).
		Float64("entry_fee", e.EntryFee).Msg("service: entry created")
	return e, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByStripeSessionID(ctx context.Context, sessionID string) (*Entry, error) {
	return s.repo.GetByStripeSessionID(ctx, sessionID)
}

func (s *service) List(ctx context.Context) ([]Entry, error) {
	return s.repo.List(ctx)
}

func (s *service) ListByEvent(ctx context.Context, event string) ([]Entry, error) {
	return s.repo.ListByEvent(ctx, event)
}

func (s *service) ListPaidByEvent(ctx context.Context, event string) ([]Entry, error) {
	return s.repo.ListByEventAndStatus(ctx, event, StatusPaid)
}

func (s *service) CountPaidByEvent(ctx context.Context, event string) (int64, error) {
	return s.repo.CountByEventAndStatus(ctx, event, StatusPaid)
}

func (s *service) SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return s.repo.SetStripeSession(ctx, id, sessionID)
}

// MarkPaid moves a pending entry to PAID. Re-delivered notifications for an
// already-paid entry are a no-op success; a terminal entry fails with
// ErrInvalidTransition and is left for manual reconciliation.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*Entry, error) {
	var applied bool
	e, err := s.repo.Transition(ctx, id, func(e *Entry) (bool, error) {
		if e.PaymentStatus == StatusPaid {
			return false, nil
		}
		if !allowedTransitions[e.PaymentStatus][StatusPaid] {
			return false, fmt.Errorf("%w: cannot mark %s entry as paid", ErrInvalidTransition, e.PaymentStatus)
		}
		now := time.Now().UTC()
		e.PaymentStatus = StatusPaid
		e.StripePaymentIntentID = paymentIntentID
		e.PaidAt = &now
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		log.Info().Stringer("entry_id", id).Msg("service: entry already paid, ignoring duplicate confirmation")
		return e, nil
	}

	log.Info().Stringer("entry_id", id).Str("payment_intent_id", paymentIntentID).Msg("service: entry marked as paid")
	if s.notifier != nil {
		s.notifier.EntryPaid(ctx, e)
	}
	return e, nil
}

// UpdateStatus applies an administrative status change (cancel, refund,
// record a failed payment).
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus PaymentStatus) (*Entry, error) {
	if newStatus == StatusPaid {
		return nil, fmt.Errorf("%w: use MarkPaid to record a payment", ErrInvalidTransition)
	}
	e, err := s.repo.Transition(ctx, id, func(e *Entry) (bool, error) {
		if e.PaymentStatus == newStatus {
			return false, nil
		}
		if !allowedTransitions[e.PaymentStatus][newStatus] {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.PaymentStatus, newStatus)
		}
		e.PaymentStatus = newStatus
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("entry_id", id).Stringer("status", e.PaymentStatus).Msg("service: entry status updated")
	return e, nil
}
