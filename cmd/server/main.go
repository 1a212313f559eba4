package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"crowdradar/internal/api"
	"crowdradar/internal/api/handlers"
	"crowdradar/internal/app"
	"crowdradar/internal/config"
	"crowdradar/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer stores.Close()

	// Initialize external gateways
	sender, err := app.NewPushSender(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s push: %v", cfg.Push.Provider, err)
	}
	verifier, err := app.NewVerifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s auth: %v", cfg.Auth.Mode, err)
	}

	// Initialize services
	notificationService := services.NewNotificationService(sender, cfg.Nearby.DefaultRadiusFt)
	locationService := services.NewLocationService(stores.Users, stores.Presence)
	deviceService := services.NewDeviceService(stores.Devices)
	nearbyService := services.NewNearbyService(cfg, stores.Presence, stores.Users)
	alertService := services.NewAlertService(cfg, stores.Devices, stores.Cooldowns, notificationService)
	pingService := services.NewPingService(cfg, stores.Users, stores.Presence, nearbyService, alertService)

	// Initialize handlers
	deviceHandler := handlers.NewDeviceHandler(deviceService)
	locationHandler := handlers.NewLocationHandler(locationService, pingService, nearbyService)

	// Setup router
	router := api.NewRouter(verifier, cfg.Server.RequestTimeout, deviceHandler, locationHandler)
	engine := gin.Default()
	router.Setup(engine)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting crowdradar server on %s (store=%s, push=%s, auth=%s)",
			cfg.Server.Port, cfg.Store.Backend, cfg.Push.Provider, cfg.Auth.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down the server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
