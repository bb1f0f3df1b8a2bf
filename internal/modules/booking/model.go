// README: Booking aggregate and status definitions.
package booking

import (
	"time"

	"lifton/internal/modules/pricing"
	"lifton/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentMode string

const (
	PaymentCash   PaymentMode = "cash"
	PaymentOnline PaymentMode = "online"
	PaymentWallet PaymentMode = "wallet"
)

type Booking struct {
	ID             types.ID
	UserID         types.ID
	DriverID       *types.ID
	ServiceType    pricing.ServiceType
	RiderCategory  pricing.RiderCategory
	Pickup         types.Point
	Drop           types.Point
	PickupAddress  string
	DropAddress    string
	DistanceKm     float64
	EstimatedFare  int64
	BaseFare       int64
	FinalFare      *int64
	InsuranceOptIn bool
	InsuranceFee   int64
	PlatformFee    int64
	PaymentMode    PaymentMode
	Status         Status
	StatusVersion  int
	CreatedAt      time.Time
	AcceptedAt     *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   *string
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions encodes the one-directional booking lifecycle.
// No backward transition is valid.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Negotiable reports whether child bids and bargains may still act on the
// booking. Booking status is the outer authority: once it leaves pending,
// every in-flight bid or bargain is unacceptable regardless of its own row.
func Negotiable(s Status) bool {
	return s == StatusPending
}
