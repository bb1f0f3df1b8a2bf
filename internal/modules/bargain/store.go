// README: Bargain store backed by PostgreSQL; resolution uses conditional updates.
package bargain

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifton/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, b *Bargain) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_bargains (
			id, booking_id, user_id, driver_id, original_fare,
			user_offer, driver_counter, final_fare, status,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(b.ID), string(b.BookingID), string(b.UserID), toStringPtr(b.DriverID),
		b.OriginalFare, b.UserOffer, b.DriverCounter, b.FinalFare, string(b.Status),
		b.CreatedAt, b.UpdatedAt, b.ExpiresAt,
	)
	return err
}

// Latest returns the most recent thread for a booking; recreated threads
// shadow older terminal ones.
func (s *Store) Latest(ctx context.Context, bookingID types.ID) (*Bargain, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, booking_id, user_id, driver_id, original_fare,
		       user_offer, driver_counter, final_fare, status,
		       created_at, updated_at, expires_at
		FROM booking_bargains
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, string(bookingID))
	return scanBargain(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBargain(row rowScanner) (*Bargain, error) {
	var b Bargain
	var driverID sql.NullString
	var userOffer, driverCounter, finalFare sql.NullInt64

	err := row.Scan(&b.ID, &b.BookingID, &b.UserID, &driverID, &b.OriginalFare,
		&userOffer, &driverCounter, &finalFare, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		b.DriverID = &d
	}
	b.UserOffer = toInt64Ptr(userOffer)
	b.DriverCounter = toInt64Ptr(driverCounter)
	b.FinalFare = toInt64Ptr(finalFare)
	return &b, nil
}

// Update rewrites the mutable fields conditional on the status the caller
// read. A concurrent accept, reject, or proposal makes the update miss so
// the caller can re-read instead of overwriting a settled thread.
func (s *Store) Update(ctx context.Context, b *Bargain, expected Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE booking_bargains
		SET driver_id = COALESCE($1, driver_id),
		    user_offer = $2,
		    driver_counter = $3,
		    final_fare = $4,
		    status = $5,
		    updated_at = $6,
		    expires_at = $7
		WHERE id = $8 AND status = $9`,
		toStringPtr(b.DriverID), b.UserOffer, b.DriverCounter, b.FinalFare,
		string(b.Status), b.UpdatedAt, b.ExpiresAt, string(b.ID), string(expected),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireStale flips stored-pending threads past their window to expired.
// Advisory: every read path re-derives expiry from the clock.
func (s *Store) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE booking_bargains
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
