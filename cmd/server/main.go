package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/cache"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/config"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/database"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/handler"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/middleware"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/notify"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/repository"
	"github.com/suntan-superman/rydeiqweb-sub004/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		} else {
			log.Println("New Relic connected")
		}
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgres(
		cfg.DatabaseURL,
		cfg.DBMaxConnections,
		cfg.DBMaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis
	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	// Notification outbox + live snapshots
	dispatcher := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer dispatcher.Close()
	snapshots := notify.NewSnapshotPublisher(redis.Client)

	// Driver geo directory
	directory := cache.NewDriverDirectory(redis.Client)

	// Repository
	rideRequestRepo := repository.NewRideRequestRepository(db.DB)

	// Services
	fareService := service.NewFareService()
	lifecycleService := service.NewLifecycleService(
		rideRequestRepo,
		fareService,
		directory,
		dispatcher,
		snapshots,
		time.Duration(cfg.BiddingWindowMinutes)*time.Minute,
		cfg.BroadcastRadiusMiles,
	)
	biddingService := service.NewBiddingService(rideRequestRepo, dispatcher, snapshots)
	repricingService := service.NewRepricingService(rideRequestRepo, fareService, dispatcher, snapshots, service.RepricingPolicy{
		StopWaitMinutes:       cfg.StopWaitMinutes,
		AutoApplyFareDelta:    cfg.AutoApplyFareDelta,
		AutoApplyMinutesDelta: cfg.AutoApplyMinutesDelta,
		NewBidFareDelta:       cfg.NewBidFareDelta,
		NewBidMinutesDelta:    cfg.NewBidMinutesDelta,
	})

	// Handlers
	rideRequestHandler := handler.NewRideRequestHandler(lifecycleService, biddingService, repricingService)
	driverHandler := handler.NewDriverHandler(directory)
	sseHandler := handler.NewSSEHandler(rideRequestRepo, redis.Client)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// New Relic middleware
	if nrApp != nil {
		r.Use(middleware.NewRelicMiddleware(nrApp))
	}

	// Rate limiter (100 requests per minute per IP)
	rateLimiter := middleware.NewRateLimiter(redis.Client, 100, time.Minute)
	r.Use(rateLimiter.Handler)

	// Idempotency middleware
	idempotencyMw := middleware.NewIdempotencyMiddleware(redis.Client)
	r.Use(idempotencyMw.Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		rideRequestHandler.RegisterRoutes(r)
		driverHandler.RegisterRoutes(r)
		sseHandler.RegisterRoutes(r)
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST /v1/ride-requests                    - Create ride request")
	log.Println("  GET  /v1/ride-requests/{id}               - Get ride request")
	log.Println("  POST /v1/ride-requests/{id}/bids          - Submit driver bid")
	log.Println("  POST /v1/ride-requests/{id}/select-bid    - Select winning bid")
	log.Println("  POST /v1/ride-requests/{id}/accept-default - Accept standing estimate")
	log.Println("  POST /v1/ride-requests/{id}/start         - Start ride")
	log.Println("  POST /v1/ride-requests/{id}/complete      - Complete ride")
	log.Println("  POST /v1/ride-requests/{id}/cancel        - Cancel ride")
	log.Println("  POST /v1/ride-requests/{id}/stop-delta    - Price a stop insertion")
	log.Println("  POST /v1/ride-requests/{id}/stops         - Add stop (repriced)")
	log.Println("  GET  /v1/ride-requests/{id}/watch         - SSE live updates")
	log.Println("  POST /v1/drivers/{id}/location            - Update driver location")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
