package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/alert"
	"github.com/mesikahq/patient-care-portal/internal/api"
	"github.com/mesikahq/patient-care-portal/internal/app"
	"github.com/mesikahq/patient-care-portal/internal/auth"
	"github.com/mesikahq/patient-care-portal/internal/config"
	"github.com/mesikahq/patient-care-portal/internal/medical"
	"github.com/mesikahq/patient-care-portal/internal/patient"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer stores.Close(context.Background())

	if err := stores.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to prepare storage", zap.Error(err))
	}

	auditService, err := app.NewAuditService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize audit service", zap.Error(err))
	}

	authService := auth.NewService(stores.Users, auditService, logger, auth.AuthServiceConfig{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: cfg.Auth.TokenExpiry,
	})
	if !cfg.Auth.Enabled {
		logger.Warn("staff authentication disabled; all requests run as anonymous")
	}

	allocator := patient.NewAllocator(stores.Patients, cfg.Registration.MaxAttempts)
	patientService := patient.NewService(stores.Patients, allocator, auditService, logger, cfg.Registration.MaxAttempts)
	medicalService := medical.NewService(stores.Patients, stores.Medical, auditService, logger)
	hub := alert.NewHub(logger)

	handler := api.NewHandler(authService, patientService, medicalService, auditService, hub, logger)
	router := api.NewRouter(handler, authService, cfg)
	engine := router.SetupRouter(logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", cfg.Addr()),
			zap.String("backend", cfg.Storage.Backend),
			zap.Bool("tls", cfg.Server.TLS.Enabled),
		)
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
