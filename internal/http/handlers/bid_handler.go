// README: Bid engine endpoints; drivers submit, riders review and accept.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifton/internal/http/middleware"
	"lifton/internal/modules/bid"
	"lifton/internal/types"
)

type BidHandler struct {
	bids *bid.Service
}

func NewBidHandler(bids *bid.Service) *BidHandler {
	return &BidHandler{bids: bids}
}

func (h *BidHandler) Register(r *gin.RouterGroup) {
	r.GET("/bookings/:id/bids", h.list)
	r.POST("/bookings/:id/bids/:bidID/accept", h.accept)
}

func (h *BidHandler) RegisterDriver(r *gin.RouterGroup) {
	r.POST("/bookings/:id/bids", h.submit)
}

type submitBidReq struct {
	Amount int64 `json:"amount"`
}

func (h *BidHandler) submit(c *gin.Context) {
	var req submitBidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	b, err := h.bids.Submit(c.Request.Context(), bid.SubmitCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  types.ID(c.GetString(middleware.CtxUserID)),
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bidJSON(b))
}

func (h *BidHandler) list(c *gin.Context) {
	bids, err := h.bids.List(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(bids))
	for _, b := range bids {
		out = append(out, bidJSON(b))
	}
	c.JSON(http.StatusOK, gin.H{"bids": out})
}

func (h *BidHandler) accept(c *gin.Context) {
	b, err := h.bids.Accept(c.Request.Context(), bid.AcceptCommand{
		BookingID: types.ID(c.Param("id")),
		BidID:     types.ID(c.Param("bidID")),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bidJSON(b))
}

func bidJSON(b *bid.Bid) gin.H {
	return gin.H{
		"bid_id":     b.ID,
		"booking_id": b.BookingID,
		"driver_id":  b.DriverID,
		"amount":     b.Amount,
		"status":     b.Status,
		"is_lowest":  b.IsLowest,
		"created_at": b.CreatedAt,
		"expires_at": b.ExpiresAt,
	}
}
