// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifton/internal/http/handlers"
	"lifton/internal/http/middleware"
	"lifton/internal/infra"
	"lifton/internal/modules/bargain"
	"lifton/internal/modules/bid"
	"lifton/internal/modules/booking"
	"lifton/internal/modules/dispatch"
	"lifton/internal/modules/pricing"
	"lifton/internal/realtime"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Bookings *booking.Service
	Bids     *bid.Service
	Bargains *bargain.Service
	Pricing  *pricing.Service
	Dispatch *dispatch.Service
	Routes   booking.RouteEstimator
	Hub      *realtime.Hub
	Verifier infra.TokenVerifier
	Logger   *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(d.Logger), middleware.Observe(d.Logger))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bookingHandler := handlers.NewBookingHandler(d.Bookings, d.Dispatch, d.Logger)
	bidHandler := handlers.NewBidHandler(d.Bids)
	bargainHandler := handlers.NewBargainHandler(d.Bargains, d.Bookings, d.Logger)
	pricingHandler := handlers.NewPricingHandler(d.Pricing, d.Routes)
	driverHandler := handlers.NewDriverHandler(d.Dispatch)
	wsHandler := handlers.NewWSHandler(d.Hub, d.Logger)

	api := r.Group("/api", middleware.Auth(d.Verifier))
	bookingHandler.Register(api)
	bidHandler.Register(api)
	bargainHandler.Register(api)
	pricingHandler.Register(api)
	wsHandler.Register(api)

	driver := api.Group("/driver", middleware.RequireRole("driver"))
	bookingHandler.RegisterDriver(driver)
	bidHandler.RegisterDriver(driver)
	bargainHandler.RegisterDriver(driver)
	driverHandler.RegisterDriver(driver)

	admin := api.Group("/admin", middleware.RequireRole("admin"))
	pricingHandler.RegisterAdmin(admin)

	return r
}
