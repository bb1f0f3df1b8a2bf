// README: Bargain thread endpoints; acceptance settles the booking fare.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifton/internal/http/middleware"
	"lifton/internal/modules/bargain"
	"lifton/internal/modules/booking"
	"lifton/internal/types"
)

type BargainHandler struct {
	bargains *bargain.Service
	bookings *booking.Service
	logger   *slog.Logger
}

func NewBargainHandler(bargains *bargain.Service, bookings *booking.Service, logger *slog.Logger) *BargainHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BargainHandler{bargains: bargains, bookings: bookings, logger: logger}
}

func (h *BargainHandler) Register(r *gin.RouterGroup) {
	r.GET("/bookings/:id/bargain", h.get)
	r.POST("/bookings/:id/bargain/offer", h.propose(bargain.ActorUser))
	r.POST("/bookings/:id/bargain/accept", h.accept(bargain.ActorUser))
	r.POST("/bookings/:id/bargain/reject", h.reject(bargain.ActorUser))
}

func (h *BargainHandler) RegisterDriver(r *gin.RouterGroup) {
	r.POST("/bookings/:id/bargain/counter", h.propose(bargain.ActorDriver))
	r.POST("/bookings/:id/bargain/accept", h.accept(bargain.ActorDriver))
	r.POST("/bookings/:id/bargain/reject", h.reject(bargain.ActorDriver))
}

type proposeReq struct {
	Amount int64 `json:"amount"`
}

func (h *BargainHandler) propose(actor bargain.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req proposeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		b, err := h.bargains.Propose(c.Request.Context(), bargain.ProposeCommand{
			BookingID: types.ID(c.Param("id")),
			Actor:     actor,
			ActorID:   types.ID(c.GetString(middleware.CtxUserID)),
			Amount:    req.Amount,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, bargainJSON(b))
	}
}

// accept resolves the thread on the counterpart's figure, then settles the
// agreed fare onto the booking. The settlement is the mandated follow-up to
// a successful acceptance; if a concurrent actor beat us to the booking the
// booking write misses and the conflict surfaces to the caller.
func (h *BargainHandler) accept(actor bargain.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := h.bargains.Accept(c.Request.Context(), bargain.ResolveCommand{
			BookingID: types.ID(c.Param("id")),
			Actor:     actor,
			ActorID:   types.ID(c.GetString(middleware.CtxUserID)),
		})
		if err != nil {
			writeError(c, err)
			return
		}

		if b.DriverID != nil && b.FinalFare != nil {
			_, err = h.bookings.ConfirmFare(c.Request.Context(), booking.ConfirmFareCommand{
				BookingID:  b.BookingID,
				DriverID:   *b.DriverID,
				AgreedFare: *b.FinalFare,
			})
			if err != nil {
				h.logger.Warn("bargain settled but booking confirmation missed",
					"booking_id", b.BookingID, "bargain_id", b.ID, "error", err)
				writeError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, bargainJSON(b))
	}
}

func (h *BargainHandler) reject(actor bargain.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := h.bargains.Reject(c.Request.Context(), bargain.ResolveCommand{
			BookingID: types.ID(c.Param("id")),
			Actor:     actor,
			ActorID:   types.ID(c.GetString(middleware.CtxUserID)),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, bargainJSON(b))
	}
}

func (h *BargainHandler) get(c *gin.Context) {
	b, err := h.bargains.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bargainJSON(b))
}

func bargainJSON(b *bargain.Bargain) gin.H {
	out := gin.H{
		"bargain_id":    b.ID,
		"booking_id":    b.BookingID,
		"user_id":       b.UserID,
		"original_fare": b.OriginalFare,
		"status":        b.Status,
		"created_at":    b.CreatedAt,
		"expires_at":    b.ExpiresAt,
	}
	if b.DriverID != nil {
		out["driver_id"] = *b.DriverID
	}
	if b.UserOffer != nil {
		out["user_offer"] = *b.UserOffer
	}
	if b.DriverCounter != nil {
		out["driver_counter"] = *b.DriverCounter
	}
	if b.FinalFare != nil {
		out["final_fare"] = *b.FinalFare
	}
	return out
}
