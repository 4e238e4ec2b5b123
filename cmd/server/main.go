package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker-api/internal/app"
	"github.com/yukikurage/task-tracker-api/internal/config"
	"github.com/yukikurage/task-tracker-api/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{Level: "info"}).WithError(err).Fatal("Failed to load configuration")
	}

	log := logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.IsRelease(),
	})

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}

	// No ReadTimeout or WriteTimeout: they would also cut long-lived notification hub
	// connections after the upgrade.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.WithField("signal", sig.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown did not complete")
	}

	if err := application.Close(); err != nil {
		log.WithError(err).Error("Failed to release resources")
	}

	log.Info("Server stopped")
}
