// README: Booking lifecycle endpoints for riders and drivers.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lifton/internal/http/middleware"
	"lifton/internal/modules/booking"
	"lifton/internal/modules/dispatch"
	"lifton/internal/modules/pricing"
	"lifton/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	dispatch *dispatch.Service
	logger   *slog.Logger
}

func NewBookingHandler(bookings *booking.Service, dispatch *dispatch.Service, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{bookings: bookings, dispatch: dispatch, logger: logger}
}

func (h *BookingHandler) Register(r *gin.RouterGroup) {
	r.POST("/bookings", h.create)
	r.GET("/bookings", h.list)
	r.GET("/bookings/:id", h.get)
	r.POST("/bookings/:id/cancel", h.cancel)
}

func (h *BookingHandler) RegisterDriver(r *gin.RouterGroup) {
	r.GET("/bookings/open", h.listOpen)
	r.POST("/bookings/:id/accept", h.acceptDirect)
	r.POST("/bookings/:id/start", h.start)
	r.POST("/bookings/:id/complete", h.complete)
	r.POST("/bookings/:id/cancel", h.cancelAsDriver)
}

type createBookingReq struct {
	ServiceType    string  `json:"service_type"`
	RiderCategory  string  `json:"rider_category"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DropLat        float64 `json:"drop_lat"`
	DropLng        float64 `json:"drop_lng"`
	PickupAddress  string  `json:"pickup_address"`
	DropAddress    string  `json:"drop_address"`
	InsuranceOptIn bool    `json:"insurance_opt_in"`
	PaymentMode    string  `json:"payment_mode"`
	OfferedFare    *int64  `json:"offered_fare"`
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		UserID:         types.ID(c.GetString(middleware.CtxUserID)),
		ServiceType:    pricing.ServiceType(req.ServiceType),
		RiderCategory:  pricing.RiderCategory(req.RiderCategory),
		Pickup:         types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Drop:           types.Point{Lat: req.DropLat, Lng: req.DropLng},
		PickupAddress:  req.PickupAddress,
		DropAddress:    req.DropAddress,
		InsuranceOptIn: req.InsuranceOptIn,
		PaymentMode:    booking.PaymentMode(req.PaymentMode),
		OfferedFare:    req.OfferedFare,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	// Invite nearby drivers to bid. Failure here does not fail the booking;
	// open bookings remain discoverable through the driver feed.
	if h.dispatch != nil {
		if err := h.dispatch.InviteBids(c.Request.Context(), b.ID, b.Pickup, b.EstimatedFare); err != nil {
			h.logger.Warn("bid invitation failed", "booking_id", b.ID, "error", err)
		}
	}
	c.JSON(http.StatusCreated, bookingJSON(b))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingJSON(b))
}

func (h *BookingHandler) list(c *gin.Context) {
	var statuses []booking.Status
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, booking.Status(strings.TrimSpace(s)))
		}
	}
	userID := types.ID(c.GetString(middleware.CtxUserID))
	bookings, err := h.bookings.ListByUser(c.Request.Context(), userID, statuses)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingJSON(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) listOpen(c *gin.Context) {
	bookings, err := h.bookings.ListOpen(c.Request.Context(), 50)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingJSON(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) acceptDirect(c *gin.Context) {
	b, err := h.bookings.AcceptDirect(c.Request.Context(), booking.AcceptDirectCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  types.ID(c.GetString(middleware.CtxUserID)),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingJSON(b))
}

func (h *BookingHandler) start(c *gin.Context) {
	err := h.bookings.Start(c.Request.Context(), booking.StartCommand{BookingID: types.ID(c.Param("id"))})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusInProgress})
}

func (h *BookingHandler) complete(c *gin.Context) {
	err := h.bookings.Complete(c.Request.Context(), booking.CompleteCommand{BookingID: types.ID(c.Param("id"))})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusCompleted})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) cancel(c *gin.Context) {
	h.doCancel(c, "user")
}

func (h *BookingHandler) cancelAsDriver(c *gin.Context) {
	h.doCancel(c, "driver")
}

func (h *BookingHandler) doCancel(c *gin.Context, actorType string) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = actorType + "_cancel"
	}
	err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(c.Param("id")),
		ActorType: actorType,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": booking.StatusCancelled})
}

func bookingJSON(b *booking.Booking) gin.H {
	out := gin.H{
		"booking_id":       b.ID,
		"user_id":          b.UserID,
		"service_type":     b.ServiceType,
		"rider_category":   b.RiderCategory,
		"pickup_lat":       b.Pickup.Lat,
		"pickup_lng":       b.Pickup.Lng,
		"drop_lat":         b.Drop.Lat,
		"drop_lng":         b.Drop.Lng,
		"pickup_address":   b.PickupAddress,
		"drop_address":     b.DropAddress,
		"distance_km":      b.DistanceKm,
		"estimated_fare":   b.EstimatedFare,
		"base_fare":        b.BaseFare,
		"insurance_opt_in": b.InsuranceOptIn,
		"insurance_fee":    b.InsuranceFee,
		"platform_fee":     b.PlatformFee,
		"payment_mode":     b.PaymentMode,
		"status":           b.Status,
		"created_at":       b.CreatedAt,
	}
	if b.DriverID != nil {
		out["driver_id"] = *b.DriverID
	}
	if b.FinalFare != nil {
		out["final_fare"] = *b.FinalFare
	}
	if b.CancelReason != nil {
		out["cancel_reason"] = *b.CancelReason
	}
	return out
}
