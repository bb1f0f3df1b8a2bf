// README: Booking store backed by PostgreSQL; all transitions are conditional updates.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

const bookingColumns = `
	id, user_id, driver_id, service_type, rider_category,
	pickup_lat, pickup_lng, drop_lat, drop_lng, pickup_address, drop_address,
	distance_km, estimated_fare, base_fare, final_fare,
	insurance_opt_in, insurance_fee, platform_fee, payment_mode,
	status, status_version,
	created_at, accepted_at, started_at, completed_at, cancelled_at, cancel_reason`

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, user_id, service_type, rider_category,
			pickup_lat, pickup_lng, drop_lat, drop_lng, pickup_address, drop_address,
			distance_km, estimated_fare, base_fare,
			insurance_opt_in, insurance_fee, platform_fee, payment_mode,
			status, status_version, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20
		)`,
		string(b.ID), string(b.UserID), string(b.ServiceType), string(b.RiderCategory),
		b.Pickup.Lat, b.Pickup.Lng, b.Drop.Lat, b.Drop.Lng, b.PickupAddress, b.DropAddress,
		b.DistanceKm, b.EstimatedFare, b.BaseFare,
		b.InsuranceOptIn, b.InsuranceFee, b.PlatformFee, string(b.PaymentMode),
		string(b.Status), b.StatusVersion, b.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	return scanBooking(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var driverID, cancelReason sql.NullString
	var finalFare sql.NullInt64
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.UserID, &driverID, &b.ServiceType, &b.RiderCategory,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Drop.Lat, &b.Drop.Lng, &b.PickupAddress, &b.DropAddress,
		&b.DistanceKm, &b.EstimatedFare, &b.BaseFare, &finalFare,
		&b.InsuranceOptIn, &b.InsuranceFee, &b.PlatformFee, &b.PaymentMode,
		&b.Status, &b.StatusVersion,
		&b.CreatedAt, &acceptedAt, &startedAt, &completedAt, &cancelledAt, &cancelReason,
	)
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
	if finalFare.Valid {
		v := finalFare.Int64
		b.FinalFare = &v
	}
	if cancelReason.Valid {
		b.CancelReason = &cancelReason.String
	}
	b.AcceptedAt = toTimePtr(acceptedAt)
	b.StartedAt = toTimePtr(startedAt)
	b.CompletedAt = toTimePtr(completedAt)
	b.CancelledAt = toTimePtr(cancelledAt)
	return &b, nil
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID, statuses []Status) ([]*Booking, error) {
	filter := make([]string, 0, len(statuses))
	for _, st := range statuses {
		filter = append(filter, string(st))
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1 AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY created_at DESC`,
		string(userID), nullableArray(filter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListOpen(ctx context.Context, limit int) ([]*Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending'
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus performs the compare-and-swap status transition. The row is
// only touched when both the status and the version match the snapshot the
// caller read, so a concurrent writer makes this report false instead of
// silently overwriting.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    cancel_reason = COALESCE($2, cancel_reason)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Settle fixes the final fare and assigns the driver, conditional on the
// booking still being pending. Used by direct acceptance and by bargain
// fare propagation; bid acceptance runs the same update inside the bid
// transaction.
func (s *Store) Settle(ctx context.Context, id types.ID, driverID types.ID, baseFare, insuranceFee, platformFee, finalFare int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
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
		string(driverID), baseFare, insuranceFee, platformFee, finalFare, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_status_events (
			booking_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, toStringPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

func (s *Store) HasActiveByUser(ctx context.Context, userID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE user_id = $1
			  AND status IN ('pending','accepted','in_progress')
		)`, string(userID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func nullableArray(v []string) []string {
	if len(v) == 0 {
		return nil
	}
	return v
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
