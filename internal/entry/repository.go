package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound      = errors.New("entry not found")
	ErrDuplicateClub = errors.New("club has already entered this event")
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	ListByEvent(ctx context.Context, event string) ([]Entry, error)
	ListByEventAndStatus(ctx context.Context, event string, status PaymentStatus) ([]Entry, error)
	CountByEventAndStatus(ctx context.Context, event string, status PaymentStatus) (int64, error)
	ExistsByEventAndClub(ctx context.Context, event, clubName string) (bool, error)
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
	// Transition runs apply against the current row inside a single
	// transaction while holding a row lock, so concurrent webhook
	// deliveries for the same entry serialize here. When apply reports no
	// change, nothing is written.
	Transition(ctx context.Context, id uuid.UUID, apply func(e *Entry) (bool, error)) (*Entry, error)
}

const entryColumns = `id, event, club_name, player1_name, player1_email, player1_handicap,
		player2_name, player2_email, player2_handicap, contact_phone, marketing_opt_in,
		payment_status, stripe_payment_intent_id, stripe_session_id, entry_fee, created_at, paid_at`

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate entry ID: %w", err)
		}
		e.ID = id
	}
	e.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.Event, e.ClubName,
		e.Player1Name, e.Player1Email, e.Player1Handicap,
		e.Player2Name, e.Player2Email, e.Player2Handicap,
		e.ContactPhone, e.MarketingOptIn,
		string(e.PaymentStatus), e.StripePaymentIntentID, e.StripeSessionID,
		e.EntryFee, e.CreatedAt, e.PaidAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "ux_entries_event_club" {
			return ErrDuplicateClub
		}
		return fmt.Errorf("repository: failed to insert entry: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.Event, &e.ClubName,
		&e.Player1Name, &e.Player1Email, &e.Player1Handicap,
		&e.Player2Name, &e.Player2Email, &e.Player2Handicap,
		&e.ContactPhone, &e.MarketingOptIn,
		&e.PaymentStatus, &e.StripePaymentIntentID, &e.StripeSessionID,
		&e.EntryFee, &e.CreatedAt, &e.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan entry: %w", err)
	}
	return &e, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`
	return scanEntry(r.db.QueryRow(ctx, query, id))
}

func (r *postgresRepository) GetByStripeSessionID(ctx context.Context, sessionID string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE stripe_session_id = $1`
	return scanEntry(r.db.QueryRow(ctx, query, sessionID))
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating entries: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC`)
}

func (r *postgresRepository) ListByEvent(ctx context.Context, event string) ([]Entry, error) {
	return r.list(ctx, `SELECT `+entryColumns+` FROM entries WHERE event = $1 ORDER BY created_at DESC`, event)
}

func (r *postgresRepository) ListByEventAndStatus(ctx context.Context, event string, status PaymentStatus) ([]Entry, error) {
	return r.list(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE event = $1 AND payment_status = $2 ORDER BY created_at DESC`,
		event, string(status))
}

func (r *postgresRepository) CountByEventAndStatus(ctx context.Context, event string, status PaymentStatus) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM entries WHERE event = $1 AND payment_status = $2`,
		event, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count entries: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) ExistsByEventAndClub(ctx context.Context, event, clubName string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entries WHERE event = $1 AND lower(club_name) = lower($2))`,
		event, clubName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check club entry: %w", err)
	}
	return exists, nil
}

// SetStripeSession is last-write-wins: only one open checkout session is
// expected per entry at a time.
func (r *postgresRepository) SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE entries SET stripe_session_id = $1 WHERE id = $2`,
		sessionID, id)
	if err != nil {
		return fmt.Errorf("repository: failed to set stripe session for entry %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) Transition(ctx context.Context, id uuid.UUID, apply func(e *Entry) (bool, error)) (e *Entry, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("entry_id", id).Msg("repository: failed to rollback entry transition")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit entry transition: %w", commitErr)
			e = nil
		}
	}()

	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1 FOR UPDATE`
	e, err = scanEntry(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	changed, err := apply(e)
	if err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE entries
		SET payment_status = $1, stripe_payment_intent_id = $2, stripe_session_id = $3, paid_at = $4
		WHERE id = $5`,
		string(e.PaymentStatus), e.StripePaymentIntentID, e.StripeSessionID, e.PaidAt, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update entry %s: %w", id, err)
	}
	return e, nil
}
