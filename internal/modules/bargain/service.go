// README: Bargain service runs the one-thread-per-booking negotiation.
package bargain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"lifton/internal/modules/booking"
	"lifton/internal/observability"
	"lifton/internal/types"
)

var (
	ErrNotFound = errors.New("bargain not found")
	ErrConflict = errors.New("bargain state conflict")
)

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

type ProposeCommand struct {
	BookingID types.ID
	Actor     Actor
	ActorID   types.ID
	Amount    int64
}

type ResolveCommand struct {
	BookingID types.ID
	Actor     Actor
	ActorID   types.ID
}

// Propose creates the thread on first contact or records a figure on the
// live one. A terminal thread is shadowed by a fresh one as long as the
// booking itself is still open.
func (s *Service) Propose(ctx context.Context, cmd ProposeCommand) (*Bargain, error) {
	if cmd.BookingID == "" || cmd.ActorID == "" {
		return nil, ErrBadRequest
	}
	bk, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Negotiable(bk.Status) {
		return nil, booking.ErrNotEligible
	}

	now := time.Now()
	cur, err := s.store.Latest(ctx, cmd.BookingID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if cur == nil || Terminal(cur.EffectiveStatus(now)) {
		var driverID *types.ID
		if cmd.Actor == ActorDriver {
			driverID = &cmd.ActorID
		}
		fresh, err := New(newID(), cmd.BookingID, bk.UserID, driverID, bk.BaseFare,
			cmd.Actor, cmd.Amount, now, s.window)
		if err != nil {
			return nil, err
		}
		if err := s.store.Create(ctx, fresh); err != nil {
			return nil, err
		}
		s.publish(ctx, "bargain_proposed", cmd.BookingID, proposalPayload(fresh))
		return fresh, nil
	}

	expected := cur.Status
	if err := cur.Propose(cmd.Actor, cmd.Amount, now, s.window); err != nil {
		return nil, err
	}
	if cmd.Actor == ActorDriver && cur.DriverID == nil {
		cur.DriverID = &cmd.ActorID
	}
	ok, err := s.store.Update(ctx, cur, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.publish(ctx, "bargain_proposed", cmd.BookingID, proposalPayload(cur))
	return cur, nil
}

// Accept resolves the thread on the counterpart's latest figure. The
// conditional update carries the pre-acceptance status the caller read, so
// of two simultaneous acceptances exactly one lands; the other re-surfaces
// as a conflict. Propagating the agreed fare onto the booking is the
// caller's follow-up (the HTTP layer settles the booking and emits the
// status change); the engine itself stays free of booking writes.
func (s *Service) Accept(ctx context.Context, cmd ResolveCommand) (*Bargain, error) {
	bk, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Negotiable(bk.Status) {
		return nil, booking.ErrNotEligible
	}
	cur, err := s.store.Latest(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expected := cur.Status
	if err := cur.Accept(cmd.Actor, now); err != nil {
		return nil, err
	}
	if cmd.Actor == ActorDriver && cur.DriverID == nil {
		cur.DriverID = &cmd.ActorID
	}
	ok, err := s.store.Update(ctx, cur, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	observability.BargainsTotal.WithLabelValues("accepted").Inc()
	s.publish(ctx, "bargain_accepted", cmd.BookingID, map[string]any{
		"booking_id": cmd.BookingID, "bargain_id": cur.ID, "final_fare": *cur.FinalFare,
	})
	return cur, nil
}

// Reject ends the thread, terminal, regardless of whose turn it was.
func (s *Service) Reject(ctx context.Context, cmd ResolveCommand) (*Bargain, error) {
	cur, err := s.store.Latest(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expected := cur.Status
	if err := cur.Reject(now); err != nil {
		return nil, err
	}
	ok, err := s.store.Update(ctx, cur, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	observability.BargainsTotal.WithLabelValues("rejected").Inc()
	s.publish(ctx, "bargain_rejected", cmd.BookingID, map[string]any{
		"booking_id": cmd.BookingID, "bargain_id": cur.ID,
	})
	return cur, nil
}

// Get returns the latest thread through the lazy-expiry lens.
func (s *Service) Get(ctx context.Context, bookingID types.ID) (*Bargain, error) {
	cur, err := s.store.Latest(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	cur.Status = cur.EffectiveStatus(time.Now())
	return cur, nil
}

// RunExpirySweeper periodically flips stale pending threads to expired.
// Advisory only; every accept and read path re-checks the clock.
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
				s.logger.Warn("bargain expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				observability.RecordsExpiredTotal.WithLabelValues("bargain").Add(float64(n))
				s.logger.Debug("expired stale bargains", "count", n)
			}
		}
	}
}

func proposalPayload(b *Bargain) map[string]any {
	p := map[string]any{
		"booking_id": b.BookingID, "bargain_id": b.ID, "status": b.Status,
		"original_fare": b.OriginalFare,
	}
	if b.UserOffer != nil {
		p["user_offer"] = *b.UserOffer
	}
	if b.DriverCounter != nil {
		p["driver_counter"] = *b.DriverCounter
	}
	return p
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
