package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rl1809/order-console/internal/adapter/handler"
	"github.com/rl1809/order-console/internal/config"
	"github.com/rl1809/order-console/internal/fakeshop"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Fallback().WithError(err).Fatal("invalid configuration")
	}
	log := cfg.NewLogger()

	shop := fakeshop.New(
		fakeshop.WithLogger(log.WithField("component", "fakeshop")),
		fakeshop.WithTransitionDelay(cfg.TransitionWait),
	)
	log.WithField("transition_delay", cfg.TransitionWait.String()).Info("shop initialized")

	httpHandler := handler.NewHTTPHandler(shop, cfg.JWTSecret, log.WithField("component", "http"))
	httpServer := &http.Server{
		Addr:              cfg.FakeshopAddr,
		Handler:           otelhttp.NewHandler(httpHandler.Router(), "fakeshop"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.FakeshopAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	log.Info("HTTP server stopped")

	shop.Close()
	log.Info("transition workers stopped")
}
