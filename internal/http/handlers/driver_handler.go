// README: Driver presence endpoints backed by the geo dispatch index.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifton/internal/http/middleware"
	"lifton/internal/modules/dispatch"
	"lifton/internal/types"
)

type DriverHandler struct {
	dispatch *dispatch.Service
}

func NewDriverHandler(d *dispatch.Service) *DriverHandler {
	return &DriverHandler{dispatch: d}
}

func (h *DriverHandler) RegisterDriver(r *gin.RouterGroup) {
	r.PUT("/location", h.updateLocation)
	r.DELETE("/location", h.goOffline)
}

type locationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *DriverHandler) updateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	driverID := types.ID(c.GetString(middleware.CtxUserID))
	err := h.dispatch.UpdateLocation(c.Request.Context(), driverID, types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "online"})
}

func (h *DriverHandler) goOffline(c *gin.Context) {
	driverID := types.ID(c.GetString(middleware.CtxUserID))
	if err := h.dispatch.GoOffline(c.Request.Context(), driverID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "offline"})
}
