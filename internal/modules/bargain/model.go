// README: Bargain thread record and the pure negotiation transitions.
package bargain

import (
	"errors"
	"time"

	"lifton/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"   // rider's offer stands, driver to move
	StatusCountered Status = "countered" // driver's counter stands, rider to move
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
)

// Actor identifies which side of the negotiation is calling. The identity
// layer supplies the classification; the engine trusts it.
type Actor string

const (
	ActorUser   Actor = "user"
	ActorDriver Actor = "driver"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrAlreadyTerminal = errors.New("bargain already settled")
	ErrNothingToAccept = errors.New("counterpart has not proposed a price yet")
)

// Bargain is the single negotiation thread for one booking. The status
// field is the authoritative turn marker: the presence of UserOffer or
// DriverCounter alone never decides whose move is next.
type Bargain struct {
	ID            types.ID
	BookingID     types.ID
	UserID        types.ID
	DriverID      *types.ID
	OriginalFare  int64
	UserOffer     *int64
	DriverCounter *int64
	FinalFare     *int64
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}

func Terminal(s Status) bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

// EffectiveStatus applies lazy expiry: a stored-pending bargain past its
// window reads as expired at every call site, whether or not a sweeper has
// touched the row. A countered bargain keeps the driver's figure on the
// table until a party resolves it.
func (b *Bargain) EffectiveStatus(now time.Time) Status {
	if b.Status == StatusPending && now.After(b.ExpiresAt) {
		return StatusExpired
	}
	return b.Status
}

// Turn reports which actor the thread is waiting on, or "" once terminal.
func (b *Bargain) Turn(now time.Time) Actor {
	switch b.EffectiveStatus(now) {
	case StatusPending:
		return ActorDriver
	case StatusCountered:
		return ActorUser
	}
	return ""
}

// New opens a negotiation thread with the acting party's figure recorded.
// OriginalFare is fixed from the booking's estimate and never changes.
func New(id, bookingID, userID types.ID, driverID *types.ID, originalFare int64, actor Actor, amount int64, now time.Time, window time.Duration) (*Bargain, error) {
	if amount <= 0 {
		return nil, ErrBadRequest
	}
	b := &Bargain{
		ID:           id,
		BookingID:    bookingID,
		UserID:       userID,
		DriverID:     driverID,
		OriginalFare: originalFare,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(window),
	}
	if actor == ActorDriver {
		b.DriverCounter = &amount
		b.Status = StatusCountered
	} else {
		b.UserOffer = &amount
		b.Status = StatusPending
	}
	return b, nil
}

// Propose records the actor's figure on a live thread and flips the turn.
// An actor re-proposing on their own turn simply replaces their figure;
// the counterpart's last figure stays recorded but loses authority because
// the status points back at them. Every proposal resets the expiry window.
func (b *Bargain) Propose(actor Actor, amount int64, now time.Time, window time.Duration) error {
	if amount <= 0 {
		return ErrBadRequest
	}
	if Terminal(b.EffectiveStatus(now)) {
		return ErrAlreadyTerminal
	}
	if actor == ActorDriver {
		b.DriverCounter = &amount
		b.Status = StatusCountered
	} else {
		b.UserOffer = &amount
		b.Status = StatusPending
	}
	b.UpdatedAt = now
	b.ExpiresAt = now.Add(window)
	return nil
}

// Accept freezes the thread on the counterpart's latest figure: the rider
// accepts the driver's counter, the driver accepts the rider's offer.
func (b *Bargain) Accept(actor Actor, now time.Time) error {
	if Terminal(b.EffectiveStatus(now)) {
		return ErrAlreadyTerminal
	}
	var figure *int64
	if actor == ActorDriver {
		figure = b.UserOffer
	} else {
		figure = b.DriverCounter
	}
	if figure == nil {
		return ErrNothingToAccept
	}
	fare := *figure
	b.FinalFare = &fare
	b.Status = StatusAccepted
	b.UpdatedAt = now
	return nil
}

// Reject ends the thread regardless of whose turn it was.
func (b *Bargain) Reject(now time.Time) error {
	if Terminal(b.EffectiveStatus(now)) {
		return ErrAlreadyTerminal
	}
	b.Status = StatusRejected
	b.UpdatedAt = now
	return nil
}
