package entry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/pricing"
)

type mockEntryRepository struct {
	createFunc     func(ctx context.Context, e *entry.Entry) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*entry.Entry, error)
	existsFunc     func(ctx context.Context, event, clubName string) (bool, error)
	transitionFunc func(ctx context.Context, id uuid.UUID, apply func(e *entry.Entry) (bool, error)) (*entry.Entry, error)
}

func (m *mockEntryRepository) Create(ctx context.Context, e *entry.Entry) error {
	return m.createFunc(ctx, e)
}

func (m *mockEntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockEntryRepository) GetByStripeSessionID(ctx context.Context, sessionID string) (*entry.Entry, error) {
	return nil, entry.ErrNotFound
}

func (m *mockEntryRepository) List(ctx context.Context) ([]entry.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) ListByEvent(ctx context.Context, event string) ([]entry.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) ListByEventAndStatus(ctx context.Context, event string, status entry.PaymentStatus) ([]entry.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) CountByEventAndStatus(ctx context.Context, event string, status entry.PaymentStatus) (int64, error) {
	return 0, nil
}

func (m *mockEntryRepository) ExistsByEventAndClub(ctx context.Context, event, clubName string) (bool, error) {
	return m.existsFunc(ctx, event, clubName)
}

func (m *mockEntryRepository) SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return nil
}

func (m *mockEntryRepository) Transition(ctx context.Context, id uuid.UUID, apply func(e *entry.Entry) (bool, error)) (*entry.Entry, error) {
	return m.transitionFunc(ctx, id, apply)
}

// inMemoryTransition simulates the repository transition against a single
// held row, recording whether a write happened.
func inMemoryTransition(e *entry.Entry, writes *int) func(ctx context.Context, id uuid.UUID, apply func(e *entry.Entry) (bool, error)) (*entry.Entry, error) {
	return func(ctx context.Context, id uuid.UUID, apply func(e *entry.Entry) (bool, error)) (*entry.Entry, error) {
		if e == nil || e.ID != id {
			return nil, entry.ErrNotFound
		}
		changed, err := apply(e)
		if err != nil {
			return nil, err
		}
		if changed {
			*writes++
		}
		return e, nil
	}
}

type recordingNotifier struct {
	entryPaidCalls int
}

func (n *recordingNotifier) EntryPaid(ctx context.Context, e *entry.Entry) {
	n.entryPaidCalls++
}

func validDraft() *entry.Entry {
	return &entry.Entry{
		Event:           "KENT_NINES_2026",
		ClubName:        "Royal Blackheath",
		Player1Name:     "Tom Price",
		Player1Email:    "tom@example.com",
		Player1Handicap: 12.4,
		Player2Name:     "Sam Hart",
		Player2Email:    "sam@example.com",
		Player2Handicap: 8.0,
		ContactPhone:    "07700900123",
	}
}

func newCalculator() *pricing.Calculator {
	return pricing.NewCalculator(pricing.DefaultConfig())
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *entry.Entry)
		exists    func(ctx context.Context, event, clubName string) (bool, error)
		create    func(ctx context.Context, e *entry.Entry) error
		wantErrIs error
		wantFee   float64
	}{
		{
			name:    "kent_entry_gets_kent_fee",
			mutate:  func(e *entry.Entry) {},
			wantFee: 150.00,
		},
		{
			name:    "essex_entry_gets_essex_fee",
			mutate:  func(e *entry.Entry) { e.Event = "ESSEX_NINES_2026" },
			wantFee: 50.00,
		},
		{
			name:      "unknown_event",
			mutate:    func(e *entry.Entry) { e.Event = "SUSSEX_NINES_2026" },
			wantErrIs: pricing.ErrUnknownEvent,
		},
		{
			name:      "duplicate_club_precheck",
			mutate:    func(e *entry.Entry) {},
			exists:    func(ctx context.Context, event, clubName string) (bool, error) { return true, nil },
			wantErrIs: entry.ErrDuplicateClub,
		},
		{
			name:   "duplicate_club_constraint_race",
			mutate: func(e *entry.Entry) {},
			// The pre-check misses, the unique constraint catches the
			// concurrent duplicate.
			create:    func(ctx context.Context, e *entry.Entry) error { return entry.ErrDuplicateClub },
			wantErrIs: entry.ErrDuplicateClub,
		},
		{
			name:      "handicap_too_high",
			mutate:    func(e *entry.Entry) { e.Player2Handicap = 54.1 },
			wantErrIs: entry.ErrInvalidEntry,
		},
		{
			name:      "handicap_negative",
			mutate:    func(e *entry.Entry) { e.Player1Handicap = -1 },
			wantErrIs: entry.ErrInvalidEntry,
		},
		{
			name:      "missing_club_name",
			mutate:    func(e *entry.Entry) { e.ClubName = "  " },
			wantErrIs: entry.ErrInvalidEntry,
		},
		{
			name:      "bad_email",
			mutate:    func(e *entry.Entry) { e.Player1Email = "not-an-email" },
			wantErrIs: entry.ErrInvalidEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists := tt.exists
			if exists == nil {
				exists = func(ctx context.Context, event, clubName string) (bool, error) { return false, nil }
			}
			create := tt.create
			if create == nil {
				create = func(ctx context.Context, e *entry.Entry) error { return nil }
			}
			repo := &mockEntryRepository{createFunc: create, existsFunc: exists}
			svc := entry.NewService(repo, newCalculator(), nil)

			draft := validDraft()
			tt.mutate(draft)
			created, err := svc.Create(context.Background(), draft)

			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, created.EntryFee)
			assert.Equal(t, entry.StatusPending, created.PaymentStatus)
			assert.Nil(t, created.PaidAt)
			assert.Empty(t, created.StripeSessionID)
		})
	}
}

func TestService_MarkPaid(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("pending_to_paid", func(t *testing.T) {
		e := &entry.Entry{ID: id, PaymentStatus: entry.StatusPending}
		writes := 0
		notifier := &recordingNotifier{}
		repo := &mockEntryRepository{transitionFunc: inMemoryTransition(e, &writes)}
		svc := entry.NewService(repo, newCalculator(), notifier)

		updated, err := svc.MarkPaid(context.Background(), id, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, entry.StatusPaid, updated.PaymentStatus)
		assert.Equal(t, "pi_123", updated.StripePaymentIntentID)
		assert.NotNil(t, updated.PaidAt)
		assert.Equal(t, 1, writes)
		assert.Equal(t, 1, notifier.entryPaidCalls)
	})

	t.Run("duplicate_confirmation_is_noop", func(t *testing.T) {
		e := &entry.Entry{ID: id, PaymentStatus: entry.StatusPending}
		writes := 0
		notifier := &recordingNotifier{}
		repo := &mockEntryRepository{transitionFunc: inMemoryTransition(e, &writes)}
		svc := entry.NewService(repo, newCalculator(), notifier)

		_, err := svc.MarkPaid(context.Background(), id, "pi_123")
		require.NoError(t, err)
		paidAt := *e.PaidAt

		// The external sender redelivers the same notification.
		updated, err := svc.MarkPaid(context.Background(), id, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, entry.StatusPaid, updated.PaymentStatus)
		assert.Equal(t, paidAt, *updated.PaidAt)
		assert.Equal(t, 1, writes)
		assert.Equal(t, 1, notifier.entryPaidCalls)
	})

	t.Run("cancelled_entry_rejected", func(t *testing.T) {
		e := &entry.Entry{ID: id, PaymentStatus: entry.StatusCancelled}
		writes := 0
		repo := &mockEntryRepository{transitionFunc: inMemoryTransition(e, &writes)}
		svc := entry.NewService(repo, newCalculator(), nil)

		_, err := svc.MarkPaid(context.Background(), id, "pi_123")
		assert.True(t, errors.Is(err, entry.ErrInvalidTransition))
		assert.Equal(t, entry.StatusCancelled, e.PaymentStatus)
		assert.Equal(t, 0, writes)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &mockEntryRepository{transitionFunc: inMemoryTransition(nil, new(int))}
		svc := entry.NewService(repo, newCalculator(), nil)

		_, err := svc.MarkPaid(context.Background(), id, "pi_123")
		assert.True(t, errors.Is(err, entry.ErrNotFound))
	})
}

func TestService_UpdateStatus(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name      string
		from      entry.PaymentStatus
		to        entry.PaymentStatus
		wantErrIs error
	}{
		{name: "pending_to_cancelled", from: entry.StatusPending, to: entry.StatusCancelled},
		{name: "pending_to_failed", from: entry.StatusPending, to: entry.StatusFailed},
		{name: "paid_to_refunded", from: entry.StatusPaid, to: entry.StatusRefunded},
		{name: "paid_via_update_status_rejected", from: entry.StatusPending, to: entry.StatusPaid, wantErrIs: entry.ErrInvalidTransition},
		{name: "refunded_is_terminal", from: entry.StatusRefunded, to: entry.StatusCancelled, wantErrIs: entry.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &entry.Entry{ID: id, PaymentStatus: tt.from}
			repo := &mockEntryRepository{transitionFunc: inMemoryTransition(e, new(int))}
			svc := entry.NewService(repo, newCalculator(), nil)

			updated, err := svc.UpdateStatus(context.Background(), id, tt.to)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.PaymentStatus)
		})
	}
}
