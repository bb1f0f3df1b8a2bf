// README: Shared handler plumbing; maps domain errors onto HTTP statuses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifton/internal/modules/bargain"
	"lifton/internal/modules/bid"
	"lifton/internal/modules/booking"
	"lifton/internal/modules/pricing"
)

// writeError translates a domain error into the response contract. Every
// negotiation conflict, lost race, and stale-state miss maps to 409 so
// clients can uniformly retry after a refresh; validation and business
// rejections carry the reason in the body.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, bid.ErrNotFound),
		errors.Is(err, bargain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, booking.ErrBadRequest),
		errors.Is(err, bid.ErrBadRequest),
		errors.Is(err, bargain.ErrBadRequest),
		errors.Is(err, pricing.ErrBadRequest),
		errors.Is(err, pricing.ErrInvalidDistance):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, bid.ErrBelowMinimum),
		errors.Is(err, pricing.ErrNoPricingConfigured),
		errors.Is(err, bargain.ErrNothingToAccept):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, bid.ErrDuplicateBid),
		errors.Is(err, bid.ErrNotPending),
		errors.Is(err, booking.ErrNotEligible),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrActiveBooking),
		errors.Is(err, bargain.ErrAlreadyTerminal),
		errors.Is(err, bargain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
