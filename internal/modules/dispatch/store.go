// README: Dispatch store backed by Redis GEO and sets.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lifton/internal/types"
)

const (
	driverGeoKey    = "dispatch:drivers"
	invitePrefix    = "dispatch:booking:%s:invited"
	dispatchedAtFmt = "dispatch:booking:%s:dispatched_at"
	// Keys outlive any sane negotiation window by a wide margin.
	keyTTL = 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) AddDriver(ctx context.Context, driverID types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *Store) RemoveDriver(ctx context.Context, driverID types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(driverID)).Err()
}

func (s *Store) NearbyDrivers(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// RecordInvites remembers when a booking was dispatched and which drivers
// were invited to bid, so re-dispatch can skip them.
func (s *Store) RecordInvites(ctx context.Context, bookingID types.ID, driverIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(dispatchedAtFmt, string(bookingID)), time.Now().UTC().Format(time.RFC3339), keyTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		key := fmt.Sprintf(invitePrefix, string(bookingID))
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// InvitedDrivers returns the set already invited for a booking.
func (s *Store) InvitedDrivers(ctx context.Context, bookingID types.ID) (map[types.ID]bool, error) {
	members, err := s.redis.SMembers(ctx, fmt.Sprintf(invitePrefix, string(bookingID))).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]bool, len(members))
	for _, m := range members {
		out[types.ID(m)] = true
	}
	return out, nil
}
