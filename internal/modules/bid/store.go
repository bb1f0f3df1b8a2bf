// README: Bid store backed by PostgreSQL; acceptance is one transaction.
package bid

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifton/internal/modules/booking"
	"lifton/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts a pending bid. The partial unique index on
// (booking_id, driver_id) WHERE status = 'pending' turns a concurrent
// duplicate into a constraint violation instead of a silent merge.
func (s *Store) Create(ctx context.Context, b *Bid) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_bids (
			id, booking_id, driver_id, bid_amount, is_lowest, status, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(b.ID), string(b.BookingID), string(b.DriverID),
		b.Amount, b.IsLowest, string(b.Status), b.CreatedAt, b.ExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateBid
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Bid, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, booking_id, driver_id, bid_amount, is_lowest, status, created_at, expires_at
		FROM driver_bids
		WHERE id = $1`, string(id))
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListByBooking returns every bid for a booking ordered by amount then
// creation time, so the first effectively-pending row is the lowest bid.
func (s *Store) ListByBooking(ctx context.Context, bookingID types.ID) ([]*Bid, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, driver_id, bid_amount, is_lowest, status, created_at, expires_at
		FROM driver_bids
		WHERE booking_id = $1
		ORDER BY bid_amount ASC, created_at ASC`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RefreshLowestHint repoints the denormalized is_lowest flag at one bid.
// Display-only; readers must not treat it as ground truth.
func (s *Store) RefreshLowestHint(ctx context.Context, bookingID, lowestID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE driver_bids
		SET is_lowest = (id = $2)
		WHERE booking_id = $1 AND status = 'pending'`,
		string(bookingID), string(lowestID))
	return err
}

// Accept runs the single-writer acceptance race in one transaction:
// CAS the target bid to accepted, reject every sibling pending bid, and
// settle the booking, all or nothing. Either conditional update missing
// its expected row aborts the transaction, so a concurrent winner, an
// expired bid, or a cancelled booking can never half-apply.
func (s *Store) Accept(ctx context.Context, bidID, bookingID, driverID types.ID, baseFare, insuranceFee, platformFee, finalFare int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE driver_bids
		SET status = 'accepted', is_lowest = FALSE
		WHERE id = $1 AND status = 'pending' AND expires_at > NOW()`,
		string(bidID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotPending
	}

	if _, err := tx.Exec(ctx, `
		UPDATE driver_bids
		SET status = 'rejected', is_lowest = FALSE
		WHERE booking_id = $1 AND id <> $2 AND status = 'pending'`,
		string(bookingID), string(bidID)); err != nil {
		return err
	}

	tag, err = tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'accepted',
		    status_version = status_version + 1,
		    driver_id = $1,
		    base_fare = $2,
		    insurance_fee = $3,
		    platform_fee = $4,
		    final_fare = $5,
		    accepted_at = NOW()
		WHERE id = $6 AND status = 'pending'`,
		string(driverID), baseFare, insuranceFee, platformFee, finalFare, string(bookingID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return booking.ErrNotEligible
	}

	return tx.Commit(ctx)
}

// ExpireStale flips stored-pending rows past their window to expired.
// Housekeeping only: every read and accept path re-checks expiry itself.
func (s *Store) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE driver_bids
		SET status = 'expired', is_lowest = FALSE
		WHERE status = 'pending' AND expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBid(row rowScanner) (*Bid, error) {
	var b Bid
	err := row.Scan(&b.ID, &b.BookingID, &b.DriverID, &b.Amount, &b.IsLowest,
		&b.Status, &b.CreatedAt, &b.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
