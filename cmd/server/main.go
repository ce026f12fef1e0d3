package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"online-storefront/internal/config"
	"online-storefront/internal/database"
	"online-storefront/internal/events"
	"online-storefront/internal/handlers"
	"online-storefront/internal/middleware"
	"online-storefront/internal/repositories"
	"online-storefront/internal/services"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if err := database.NewMigrator(db.DB).RunMigrations(); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Session store for principal resolution
	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30, // 30 days
		HttpOnly: true,
		Secure:   cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db.DB)
	productRepo := repositories.NewProductRepository(db.DB)
	offerRepo := repositories.NewOfferRepository(db.DB)
	cartRepo := repositories.NewCartRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)

	// Services
	offerService := services.NewOfferService()
	stockGuard := services.NewStockGuard(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo, offerRepo, stockGuard, offerService, logger)
	emailService := services.NewEmailService(cfg.Email, logger)
	invoiceService := services.NewInvoiceService()
	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer publisher.Close()

	orderService := services.NewOrderService(
		orderRepo, offerRepo, cartService, stockGuard,
		emailService, invoiceService, publisher, logger,
	)

	payfastService := services.NewPayFastService(cfg.PayFast)

	// Handlers
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(payfastService, orderService, logger)

	authMiddleware := middleware.NewAuthMiddleware(userRepo, sessionStore)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(authMiddleware.LoadUser)

	// Gateway callbacks authenticate by signature, not session
	r.Group(paymentHandler.WebhookRoutes)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		cartHandler.Routes(r)
		orderHandler.Routes(r)
		paymentHandler.Routes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		orderHandler.AdminRoutes(r)
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
