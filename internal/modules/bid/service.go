// README: Bid service implements admission, lowest tracking, and the acceptance race.
package bid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lifton/internal/modules/booking"
	"lifton/internal/modules/pricing"
	"lifton/internal/observability"
	"lifton/internal/types"
)

var (
	ErrNotFound     = errors.New("bid not found")
	ErrBadRequest   = errors.New("bad request")
	ErrDuplicateBid = errors.New("driver already has a pending bid on this booking")
	ErrBelowMinimum = errors.New("bid below minimum")
	ErrNotPending   = errors.New("bid is no longer pending")
)

// Bookings is the slice of the booking service the bid engine reads.
// Booking status is the outer authority over every bid.
type Bookings interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
}

type Notifier interface {
	Publish(ctx context.Context, event string, key types.ID, payload any) error
}

type Service struct {
	store    *Store
	bookings Bookings
	notifier Notifier
	window   time.Duration
	logger   *slog.Logger
}

func NewService(store *Store, bookings Bookings, notifier Notifier, window time.Duration, logger *slog.Logger) *Service {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, bookings: bookings, notifier: notifier, window: window, logger: logger}
}

type SubmitCommand struct {
	BookingID types.ID
	DriverID  types.ID
	Amount    int64
}

type AcceptCommand struct {
	BookingID types.ID
	BidID     types.ID
}

// Submit admits one driver's competitive offer. Concurrent submissions
// from distinct drivers are independent inserts and never conflict; a
// duplicate from the same driver is rejected by the store's unique index.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Bid, error) {
	if cmd.BookingID == "" || cmd.DriverID == "" || cmd.Amount <= 0 {
		return nil, ErrBadRequest
	}
	bk, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Negotiable(bk.Status) {
		return nil, booking.ErrNotEligible
	}

	// Reference is the rider's offered price when one exists; otherwise
	// EstimatedFare still holds the untouched base estimate.
	min := MinimumBid(bk.EstimatedFare)
	if cmd.Amount < min {
		return nil, fmt.Errorf("%w: minimum bid is %d", ErrBelowMinimum, min)
	}

	now := time.Now()
	b := &Bid{
		ID:        newID(),
		BookingID: cmd.BookingID,
		DriverID:  cmd.DriverID,
		Amount:    cmd.Amount,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.window),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	observability.BidsSubmittedTotal.Inc()

	s.refreshLowestHint(ctx, cmd.BookingID)
	s.publish(ctx, "bid_submitted", cmd.BookingID, map[string]any{
		"booking_id": cmd.BookingID, "bid_id": b.ID, "driver_id": cmd.DriverID, "amount": cmd.Amount,
	})
	return b, nil
}

// List returns the bids for a booking through the lazy-expiry lens, with
// the lowest flag recomputed rather than read from the stored hint.
func (s *Service) List(ctx context.Context, bookingID types.ID) ([]*Bid, error) {
	bids, err := s.store.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	lowest := Lowest(bids, now)
	for _, b := range bids {
		b.Status = EffectiveStatus(b, now)
		b.IsLowest = lowest != nil && b.ID == lowest.ID
	}
	return bids, nil
}

// Accept settles the booking on one bid. Exactly one caller can win: the
// store runs conditional updates inside a transaction, so the loser of a
// concurrent race surfaces ErrNotPending instead of double-assigning a
// driver. The final fare is the bid amount plus the re-derived insurance
// fee; the platform fee is recomputed off the bid amount.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Bid, error) {
	b, err := s.store.Get(ctx, cmd.BidID)
	if err != nil {
		return nil, err
	}
	if b.BookingID != cmd.BookingID {
		return nil, ErrBadRequest
	}
	if EffectiveStatus(b, time.Now()) != StatusPending {
		return nil, ErrNotPending
	}
	bk, err := s.bookings.Get(ctx, b.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Negotiable(bk.Status) {
		return nil, booking.ErrNotEligible
	}

	insurance := pricing.InsuranceFee(bk.DistanceKm, bk.InsuranceOptIn)
	err = s.store.Accept(ctx, b.ID, b.BookingID, b.DriverID,
		b.Amount, insurance, pricing.PlatformFee(b.Amount), b.Amount+insurance)
	if err != nil {
		if errors.Is(err, ErrNotPending) || errors.Is(err, booking.ErrNotEligible) {
			observability.BidAcceptConflicts.Inc()
		}
		return nil, err
	}
	observability.BidsAcceptedTotal.Inc()

	s.publish(ctx, "bid_accepted", b.BookingID, map[string]any{
		"booking_id": b.BookingID, "bid_id": b.ID, "driver_id": b.DriverID,
		"final_fare": b.Amount + insurance,
	})
	b.Status = StatusAccepted
	return b, nil
}

// RunExpirySweeper periodically flips stale pending bids to expired. The
// sweep is advisory housekeeping; correctness never depends on it because
// reads and accepts re-check expiry themselves.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.ExpireStale(ctx)
			if err != nil {
				s.logger.Warn("bid expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				observability.RecordsExpiredTotal.WithLabelValues("bid").Add(float64(n))
				s.logger.Debug("expired stale bids", "count", n)
			}
		}
	}
}

func (s *Service) refreshLowestHint(ctx context.Context, bookingID types.ID) {
	bids, err := s.store.ListByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Warn("refresh lowest hint failed", "booking_id", bookingID, "error", err)
		return
	}
	lowest := Lowest(bids, time.Now())
	if lowest == nil {
		return
	}
	if err := s.store.RefreshLowestHint(ctx, bookingID, lowest.ID); err != nil {
		s.logger.Warn("refresh lowest hint failed", "booking_id", bookingID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event string, key types.ID, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, key, payload); err != nil {
		s.logger.Warn("publish event failed", "event", event, "key", key, "error", err)
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
