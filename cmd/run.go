package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"refledger/api"
	"refledger/config"
	"refledger/database"
	"refledger/events"
	"refledger/repository"
	"refledger/service"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting refledger...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()
	registerEventLogging(eventBus)

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	referralService := service.NewReferralService(uowFactory)
	userService := service.NewUserService(uowFactory, referralService, cfg.RegistrationBonus, []byte(cfg.JWTSecret))
	withdrawalService := service.NewWithdrawalService(uowFactory)

	// Initialize HTTP surface
	handler := api.NewHandler(userService, referralService, withdrawalService)
	router := api.NewRouter(handler, api.RequireAuth(userService))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":        cfg.ListenAddr,
			"environment": cfg.Environment,
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		db.Close()
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	// Cleanup resources
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}

	log.Info("Closing database connection...")
	db.Close()

	log.Info("Shutdown completed")
	return nil
}

// registerEventLogging subscribes structured log lines to the domain events.
func registerEventLogging(bus *events.Bus) {
	bus.Subscribe(events.EventTypeUserRegistered, func(ctx context.Context, event events.Event) {
		e := event.(events.UserRegisteredEvent)
		log.WithFields(log.Fields{
			"userID":   e.UserID,
			"referred": e.ReferredByID != nil,
		}).Debug("User registered event")
	})
	bus.Subscribe(events.EventTypeReferralEarningRecorded, func(ctx context.Context, event events.Event) {
		e := event.(events.ReferralEarningRecordedEvent)
		log.WithFields(log.Fields{
			"userID": e.UserID,
			"level":  e.Level,
			"amount": e.Amount,
		}).Debug("Referral earning recorded event")
	})
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		e := event.(events.BalanceChangeEvent)
		log.WithFields(log.Fields{
			"userID": e.UserID,
			"amount": e.ChangeAmount,
			"type":   e.TransactionType,
		}).Debug("Balance change event")
	})
	bus.Subscribe(events.EventTypeWithdrawalStatusChange, func(ctx context.Context, event events.Event) {
		e := event.(events.WithdrawalStatusChangeEvent)
		log.WithFields(log.Fields{
			"requestID": e.RequestID,
			"oldStatus": e.OldStatus,
			"newStatus": e.NewStatus,
		}).Debug("Withdrawal status change event")
	})
}
