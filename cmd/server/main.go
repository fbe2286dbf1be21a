package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamcast/internal/core/services"
	httphandlers "streamcast/internal/handlers/http"
	archive "streamcast/internal/infrastructure/backup"
	"streamcast/internal/infrastructure/middleware"
	"streamcast/internal/infrastructure/monitoring"
	repositories "streamcast/internal/infrastructure/repositories"
	signalserver "streamcast/internal/infrastructure/signal"
	"streamcast/internal/infrastructure/transcode"
	"streamcast/pkg/backup"
	"streamcast/pkg/config"
	"streamcast/pkg/logger"
	"streamcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/streamcast/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "streamcast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize store factory (Redis-backed or in-memory)
	storeFactory, err := repositories.NewStoreFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create store factory", "error", err)
	}
	defer storeFactory.Close()

	recordingStore := storeFactory.CreateRecordingStore()

	// Initialize services
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL,
		cfg.Auth.Username,
		cfg.Auth.Password,
	)
	roomRegistry := services.NewRoomRegistry()
	transcoder := transcode.NewFFmpegTranscoder(cfg.Transcode.FFmpegPath, log)

	// Initialize monitoring
	prometheusCollector := monitoring.NewPrometheusCollector()

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddStoreCheck(recordingStore, 30*time.Second, 5*time.Second)

	// Signaling coordinator
	wsServer := signalserver.NewWebSocketServer(roomRegistry, authService, prometheusCollector, signalserver.Options{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go wsServer.Run(runCtx)
	healthChecker.StartBackgroundChecks(runCtx)

	// Optional recording archival to local storage
	var archiveScheduler *archive.Scheduler
	if cfg.Backup.Enabled {
		storage, err := backup.NewFileStorage(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to open archive storage", "error", err)
		}
		archiver := archive.NewArchiver(recordingStore, storage, log)
		if cfg.Backup.RestoreOnStart {
			if n, err := archiver.Restore(runCtx); err != nil {
				log.Warnw("archive restore incomplete", "restored", n, "error", err)
			}
		}
		archiveScheduler = archive.NewScheduler(archiver, cfg.Backup.Interval, log)
		go archiveScheduler.Start(runCtx)
	}

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService)
	recordingHandler := httphandlers.NewRecordingHandler(recordingStore, transcoder, prometheusCollector, log)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Setup auth routes (public)
	authHandler.SetupRoutes(router)

	// WebSocket signaling endpoint (token checked before upgrade)
	router.GET(cfg.Signal.Path, gin.WrapF(wsServer.HandleWebSocket))

	// Recording routes with authentication
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))
	recordingHandler.SetupRoutes(api)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := 200
		if status.Status != monitoring.StatusHealthy {
			code = 503
		}
		c.JSON(code, gin.H{
			"status":    status.Status,
			"checks":    status.Checks,
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint checks the recording store (Redis when enabled)
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := storeFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting StreamCast server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down StreamCast server...")

	// Stop accepting signaling traffic before draining HTTP
	runCancel()
	if archiveScheduler != nil {
		archiveScheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	if err := storeFactory.Close(); err != nil {
		log.Errorw("Error closing store factory", "error", err)
	}

	log.Info("StreamCast server stopped")
}
