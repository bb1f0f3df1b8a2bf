// README: Dispatch service invites nearby drivers to bid on new bookings.
package dispatch

import (
	"context"
	"log/slog"

	"lifton/internal/config"
	"lifton/internal/types"
)

type Notifier interface {
	Publish(ctx context.Context, event string, key types.ID, payload any) error
}

type Service struct {
	store    *Store
	notifier Notifier
	cfg      config.DispatchConfig
	logger   *slog.Logger
}

func NewService(store *Store, notifier Notifier, cfg config.DispatchConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, cfg: cfg, logger: logger}
}

// UpdateLocation records a driver as online at a position.
func (s *Service) UpdateLocation(ctx context.Context, driverID types.ID, p types.Point) error {
	return s.store.AddDriver(ctx, driverID, p)
}

// GoOffline removes a driver from the dispatch pool.
func (s *Service) GoOffline(ctx context.Context, driverID types.ID) error {
	return s.store.RemoveDriver(ctx, driverID)
}

// InviteBids notifies drivers near the pickup that a booking is open for
// bidding. Best-effort fan-out: the booking is visible through the open
// list regardless, so a missed invite costs reach, not correctness.
func (s *Service) InviteBids(ctx context.Context, bookingID types.ID, pickup types.Point, estimatedFare int64) error {
	nearby, err := s.store.NearbyDrivers(ctx, pickup, s.cfg.RadiusKm, s.cfg.InviteCount)
	if err != nil {
		return err
	}
	already, err := s.store.InvitedDrivers(ctx, bookingID)
	if err != nil {
		return err
	}
	invites := make([]types.ID, 0, len(nearby))
	for _, d := range nearby {
		if !already[d] {
			invites = append(invites, d)
		}
	}
	if len(invites) == 0 {
		return nil
	}
	if err := s.store.RecordInvites(ctx, bookingID, invites); err != nil {
		return err
	}
	if s.notifier != nil {
		err := s.notifier.Publish(ctx, "bid_invitation", bookingID, map[string]any{
			"booking_id":     bookingID,
			"estimated_fare": estimatedFare,
			"driver_ids":     invites,
		})
		if err != nil {
			s.logger.Warn("publish bid invitation failed", "booking_id", bookingID, "error", err)
		}
	}
	s.logger.Debug("invited drivers to bid", "booking_id", bookingID, "count", len(invites))
	return nil
}
