// README: Driver bid record and the pure projections over a bid set.
package bid

import (
	"math"
	"time"

	"lifton/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Bid is one driver's competitive offer against a pending booking.
type Bid struct {
	ID        types.ID
	BookingID types.ID
	DriverID  types.ID
	Amount    int64
	// IsLowest is a denormalized display hint and possibly stale; the
	// authoritative answer is Lowest over the current pending set.
	IsLowest  bool
	Status    Status
	CreatedAt time.Time
	ExpiresAt time.Time
}

// minBidFraction is the platform floor against predatory low-ball bids.
const minBidFraction = 0.7

// MinimumBid is the lowest admissible bid against a reference fare (the
// rider's offered price when one exists, else the base estimate).
func MinimumBid(reference int64) int64 {
	return int64(math.Round(float64(reference) * minBidFraction))
}

// EffectiveStatus applies lazy expiry: a stored-pending bid past its expiry
// reads as expired everywhere, whether or not a sweeper has touched the row.
func EffectiveStatus(b *Bid, now time.Time) Status {
	if b.Status == StatusPending && now.After(b.ExpiresAt) {
		return StatusExpired
	}
	return b.Status
}

// Lowest picks the winning display bid from the effectively-pending set:
// minimal amount, ties broken by earliest creation time. Pure projection,
// recomputed on every read. Returns nil when no bid is live.
func Lowest(bids []*Bid, now time.Time) *Bid {
	var best *Bid
	for _, b := range bids {
		if EffectiveStatus(b, now) != StatusPending {
			continue
		}
		if best == nil || b.Amount < best.Amount ||
			(b.Amount == best.Amount && b.CreatedAt.Before(best.CreatedAt)) {
			best = b
		}
	}
	return best
}
