// README: Entry point; loads config, wires services, starts HTTP server and expiry sweepers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifton/internal/config"
	"lifton/internal/events"
	httptransport "lifton/internal/http"
	"lifton/internal/infra"
	"lifton/internal/logging"
	"lifton/internal/maps"
	"lifton/internal/modules/bargain"
	"lifton/internal/modules/bid"
	"lifton/internal/modules/booking"
	"lifton/internal/modules/dispatch"
	"lifton/internal/modules/pricing"
	"lifton/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	// Token verification is optional in local development; without a
	// project the identity middleware trusts gateway headers.
	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Error("firebase init failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("firebase project not configured, trusting identity headers")
	}

	hub := realtime.NewHub(logger)
	notifier := events.Fanout{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		notifier = append(notifier, producer)
	}

	var routes booking.RouteEstimator
	if cfg.Maps.APIKey != "" {
		routes, err = maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Error("maps client init failed", "error", err)
			os.Exit(1)
		}
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool))
	bookingSvc := booking.NewService(booking.NewStore(dbPool), pricingSvc, routes, notifier, logger)
	bidSvc := bid.NewService(bid.NewStore(dbPool), bookingSvc, notifier, cfg.Negotiation.BidWindow, logger)
	bargainSvc := bargain.NewService(bargain.NewStore(dbPool), bookingSvc, notifier, cfg.Negotiation.BargainWindow, logger)
	dispatchSvc := dispatch.NewService(dispatch.NewStore(redisClient), notifier, cfg.Dispatch, logger)

	handler := httptransport.NewRouter(httptransport.Deps{
		Bookings: bookingSvc,
		Bids:     bidSvc,
		Bargains: bargainSvc,
		Pricing:  pricingSvc,
		Dispatch: dispatchSvc,
		Routes:   routes,
		Hub:      hub,
		Verifier: verifier,
		Logger:   logger,
	})

	go bidSvc.RunExpirySweeper(ctx, cfg.Negotiation.SweepInterval)
	go bargainSvc.RunExpirySweeper(ctx, cfg.Negotiation.SweepInterval)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
