// README: Fare estimate and competitor comparison endpoints.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lifton/internal/modules/booking"
	"lifton/internal/modules/pricing"
	"lifton/internal/types"
)

type PricingHandler struct {
	pricing *pricing.Service
	routes  booking.RouteEstimator
}

func NewPricingHandler(p *pricing.Service, routes booking.RouteEstimator) *PricingHandler {
	return &PricingHandler{pricing: p, routes: routes}
}

func (h *PricingHandler) Register(r *gin.RouterGroup) {
	r.POST("/pricing/estimate", h.estimate)
	r.GET("/pricing/compare", h.compare)
}

func (h *PricingHandler) RegisterAdmin(r *gin.RouterGroup) {
	r.PUT("/pricing/:serviceType", h.updateRule)
}

type estimateRequest struct {
	ServiceType    string  `json:"service_type"`
	RiderCategory  string  `json:"rider_category"`
	DistanceKm     float64 `json:"distance_km"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DropLat        float64 `json:"drop_lat"`
	DropLng        float64 `json:"drop_lng"`
	InsuranceOptIn bool    `json:"insurance_opt_in"`
}

func (h *PricingHandler) estimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	distance := req.DistanceKm
	if distance <= 0 && h.routes != nil {
		pickup := types.Point{Lat: req.PickupLat, Lng: req.PickupLng}
		drop := types.Point{Lat: req.DropLat, Lng: req.DropLng}
		if d, err := h.routes.DistanceKm(c.Request.Context(), pickup, drop); err == nil {
			distance = d
		}
	}

	rider := pricing.RiderCategory(req.RiderCategory)
	if rider == "" {
		rider = pricing.RiderStandard
	}
	quote, err := h.pricing.Estimate(c.Request.Context(), distance,
		pricing.ServiceType(req.ServiceType), rider, req.InsuranceOptIn)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteJSON(quote))
}

func quoteJSON(q pricing.Quote) gin.H {
	return gin.H{
		"service_type":   q.ServiceType,
		"distance_km":    q.DistanceKm,
		"estimated_fare": q.EstimatedFare,
		"insurance_fee":  q.InsuranceFee,
		"platform_fee":   q.PlatformFee,
		"total":          q.Total,
	}
}

func (h *PricingHandler) compare(c *gin.Context) {
	distance, err := strconv.ParseFloat(c.Query("distance_km"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid distance_km"})
		return
	}
	serviceType := pricing.ServiceType(c.Query("service_type"))

	rider := pricing.RiderCategory(c.DefaultQuery("rider_category", string(pricing.RiderStandard)))
	quote, err := h.pricing.Estimate(c.Request.Context(), distance, serviceType, rider, false)
	if err != nil {
		writeError(c, err)
		return
	}
	cmp, err := h.pricing.Compare(c.Request.Context(), distance, serviceType, quote.EstimatedFare)
	if err != nil {
		writeError(c, err)
		return
	}
	competitors := make([]gin.H, 0, len(cmp.Competitors))
	for _, row := range cmp.Competitors {
		competitors = append(competitors, gin.H{
			"competitor": row.CompetitorName,
			"fare":       row.Fare,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"service_type": serviceType,
		"distance_km":  distance,
		"our_fare":     cmp.OurFare,
		"competitors":  competitors,
	})
}

type updateRuleRequest struct {
	BaseFare        int64   `json:"base_fare"`
	PerKmRate       float64 `json:"per_km_rate"`
	MinimumFare     int64   `json:"minimum_fare"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	Active          bool    `json:"active"`
}

func (h *PricingHandler) updateRule(c *gin.Context) {
	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule := pricing.Rule{
		ServiceType:     pricing.ServiceType(c.Param("serviceType")),
		BaseFare:        req.BaseFare,
		PerKmRate:       req.PerKmRate,
		MinimumFare:     req.MinimumFare,
		SurgeMultiplier: req.SurgeMultiplier,
		Active:          req.Active,
	}
	if err := h.pricing.UpdateRule(c.Request.Context(), rule); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service_type":     rule.ServiceType,
		"base_fare":        rule.BaseFare,
		"per_km_rate":      rule.PerKmRate,
		"minimum_fare":     rule.MinimumFare,
		"surge_multiplier": rule.SurgeMultiplier,
		"active":           rule.Active,
	})
}
