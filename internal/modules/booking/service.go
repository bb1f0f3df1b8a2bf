// README: Booking service implements lifecycle transitions and fare settlement.
package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"time"

	"lifton/internal/modules/pricing"
	"lifton/internal/types"
)

var (
	ErrNotFound      = errors.New("booking not found")
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidState  = errors.New("invalid booking state transition")
	ErrConflict      = errors.New("booking state conflict")
	ErrActiveBooking = errors.New("user has an active booking")
	// ErrNotEligible is returned when a bid or bargain operation targets a
	// booking that is no longer open for negotiation.
	ErrNotEligible = errors.New("booking not eligible for negotiation")
)

// Pricing is the slice of the pricing service the booking flow needs.
type Pricing interface {
	Estimate(ctx context.Context, distanceKm float64, serviceType pricing.ServiceType, rider pricing.RiderCategory, insuranceOptIn bool) (pricing.Quote, error)
}

// RouteEstimator resolves the server-observed road distance between two
// points. A nil estimator falls back to great-circle distance with a road
// approximation factor.
type RouteEstimator interface {
	DistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}

// Notifier fans logical events out to interested parties. Informed, not
// consulted: publish failures are logged, never propagated.
type Notifier interface {
	Publish(ctx context.Context, event string, key types.ID, payload any) error
}

type Service struct {
	store    *Store
	pricing  Pricing
	routes   RouteEstimator
	notifier Notifier
	logger   *slog.Logger
}

func NewService(store *Store, pricing Pricing, routes RouteEstimator, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, pricing: pricing, routes: routes, notifier: notifier, logger: logger}
}

type CreateCommand struct {
	UserID         types.ID
	ServiceType    pricing.ServiceType
	RiderCategory  pricing.RiderCategory
	Pickup         types.Point
	Drop           types.Point
	PickupAddress  string
	DropAddress    string
	InsuranceOptIn bool
	PaymentMode    PaymentMode
	// OfferedFare, when set below the estimate, becomes the rider's asking
	// price; the untouched estimate is kept as the base fare reference.
	OfferedFare *int64
}

type AcceptDirectCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type ConfirmFareCommand struct {
	BookingID  types.ID
	DriverID   types.ID
	AgreedFare int64
}

type StartCommand struct {
	BookingID types.ID
}

type CompleteCommand struct {
	BookingID types.ID
}

type CancelCommand struct {
	BookingID types.ID
	ActorType string
	Reason    string
}

// Create recomputes distance and every fee server-side; nothing submitted
// by the client is trusted beyond the coordinates and the opt-in flag.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.UserID == "" || !pricing.ValidServiceType(cmd.ServiceType) {
		return nil, ErrBadRequest
	}
	if cmd.RiderCategory == "" {
		cmd.RiderCategory = pricing.RiderStandard
	}
	if cmd.PaymentMode == "" {
		cmd.PaymentMode = PaymentCash
	}
	active, err := s.store.HasActiveByUser(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveBooking
	}

	distance, err := s.distanceKm(ctx, cmd.Pickup, cmd.Drop)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricing.Estimate(ctx, distance, cmd.ServiceType, cmd.RiderCategory, cmd.InsuranceOptIn)
	if err != nil {
		return nil, err
	}

	estimated := quote.EstimatedFare
	if cmd.OfferedFare != nil && *cmd.OfferedFare > 0 && *cmd.OfferedFare < estimated {
		estimated = *cmd.OfferedFare
	}

	b := &Booking{
		ID:             newID(),
		UserID:         cmd.UserID,
		ServiceType:    cmd.ServiceType,
		RiderCategory:  cmd.RiderCategory,
		Pickup:         cmd.Pickup,
		Drop:           cmd.Drop,
		PickupAddress:  cmd.PickupAddress,
		DropAddress:    cmd.DropAddress,
		DistanceKm:     distance,
		EstimatedFare:  estimated,
		BaseFare:       quote.EstimatedFare,
		InsuranceOptIn: cmd.InsuranceOptIn,
		InsuranceFee:   quote.InsuranceFee,
		PlatformFee:    quote.PlatformFee,
		PaymentMode:    cmd.PaymentMode,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, b.ID, StatusNone, StatusPending, "user", &cmd.UserID)
	s.publish(ctx, "booking_status_changed", b.ID, map[string]any{
		"booking_id": b.ID, "status": StatusPending, "estimated_fare": b.EstimatedFare,
	})
	return b, nil
}

// AcceptDirect assigns a driver at the rider's current asking price with no
// bid or bargain round. The settlement is a single conditional update; a
// concurrent acceptance or cancellation makes it miss and surface as a
// conflict.
func (s *Service) AcceptDirect(ctx context.Context, cmd AcceptDirectCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusAccepted) {
		return nil, ErrInvalidState
	}
	insurance := pricing.InsuranceFee(b.DistanceKm, b.InsuranceOptIn)
	base := b.EstimatedFare
	ok, err := s.store.Settle(ctx, b.ID, cmd.DriverID, base, insurance, pricing.PlatformFee(base), base+insurance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, StatusPending, StatusAccepted, "driver", &cmd.DriverID)
	s.publish(ctx, "booking_status_changed", b.ID, map[string]any{
		"booking_id": b.ID, "status": StatusAccepted, "driver_id": cmd.DriverID, "final_fare": base + insurance,
	})
	return s.store.Get(ctx, b.ID)
}

// ConfirmFare propagates an agreed bargain figure onto the booking. The
// bargain engine documents this as a required consumer action; the handler
// layer calls it right after a successful bargain acceptance.
func (s *Service) ConfirmFare(ctx context.Context, cmd ConfirmFareCommand) (*Booking, error) {
	if cmd.AgreedFare <= 0 || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusAccepted) {
		return nil, ErrInvalidState
	}
	insurance := pricing.InsuranceFee(b.DistanceKm, b.InsuranceOptIn)
	ok, err := s.store.Settle(ctx, b.ID, cmd.DriverID, cmd.AgreedFare, insurance,
		pricing.PlatformFee(cmd.AgreedFare), cmd.AgreedFare+insurance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, StatusPending, StatusAccepted, "driver", &cmd.DriverID)
	s.publish(ctx, "booking_status_changed", b.ID, map[string]any{
		"booking_id": b.ID, "status": StatusAccepted, "driver_id": cmd.DriverID, "final_fare": cmd.AgreedFare + insurance,
	})
	return s.store.Get(ctx, b.ID)
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	return s.transition(ctx, cmd.BookingID, StatusInProgress, "driver", nil)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	return s.transition(ctx, cmd.BookingID, StatusCompleted, "driver", nil)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	reason := cmd.Reason
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, StatusCancelled, b.StatusVersion, &reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	var actorID *types.ID
	if cmd.ActorType == "user" {
		actorID = &b.UserID
	} else {
		actorID = b.DriverID
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusCancelled, cmd.ActorType, actorID)
	s.publish(ctx, "booking_status_changed", b.ID, map[string]any{
		"booking_id": b.ID, "status": StatusCancelled, "reason": reason,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID, statuses []Status) ([]*Booking, error) {
	return s.store.ListByUser(ctx, userID, statuses)
}

func (s *Service) ListOpen(ctx context.Context, limit int) ([]*Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListOpen(ctx, limit)
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, actorType string, actorID *types.ID) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, to, b.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if actorID == nil {
		actorID = b.DriverID
	}
	s.appendEvent(ctx, b.ID, b.Status, to, actorType, actorID)
	s.publish(ctx, "booking_status_changed", b.ID, map[string]any{"booking_id": b.ID, "status": to})
	return nil
}

func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actorType string, actorID *types.ID) {
	err := s.store.AppendEvent(ctx, &Event{
		BookingID:  id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		s.logger.Warn("append booking event failed", "booking_id", id, "error", err)
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

func (s *Service) distanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	if s.routes != nil {
		d, err := s.routes.DistanceKm(ctx, from, to)
		if err == nil && d > 0 {
			return d, nil
		}
		s.logger.Warn("route distance lookup failed, using haversine", "error", err)
	}
	return roadDistanceKm(from, to), nil
}

// roadDistanceKm approximates road distance as great-circle distance plus
// twenty percent.
func roadDistanceKm(a, b types.Point) float64 {
	const R = 6371.0
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dlat := (b.Lat - a.Lat) * math.Pi / 180.0
	dlng := (b.Lng - a.Lng) * math.Pi / 180.0
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	km := 2 * R * math.Asin(math.Sqrt(h))
	return math.Round(km*1.2*10) / 10
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
