package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tickertap/tickertap-api/internal/accounts"
	"github.com/tickertap/tickertap-api/internal/admin"
	"github.com/tickertap/tickertap-api/internal/auth"
	"github.com/tickertap/tickertap-api/internal/config"
	"github.com/tickertap/tickertap-api/internal/database"
	"github.com/tickertap/tickertap-api/internal/market"
	"github.com/tickertap/tickertap-api/internal/orders"
	"github.com/tickertap/tickertap-api/internal/portfolio"
	"github.com/tickertap/tickertap-api/internal/transactions"
	"github.com/tickertap/tickertap-api/pkg/metrics"
	"github.com/tickertap/tickertap-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the brokerage API server with graceful shutdown
// support. It wires the ledger store, services, background price refresh,
// and all API routes.
func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(db, cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)

	collector := metrics.NewCollector()

	accountsService := accounts.NewService(db)
	accountsHandlers := accounts.NewGinHandlers(accountsService)

	transactionsService := transactions.NewService(db)
	transactionsHandlers := transactions.NewGinHandlers(transactionsService, collector)

	ordersService := orders.NewService(db)
	ordersHandlers := orders.NewGinHandlers(ordersService, collector)

	portfolioService := portfolio.NewService(db)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)

	priceSource := market.NewMockSource()
	marketHandlers := market.NewGinHandlers(priceSource, db)

	adminService := admin.NewService(db)
	adminHandlers := admin.NewGinHandlers(adminService, admin.NewPolicy(cfg.AdminEmails))

	// Create and start the background price refresher
	priceProcessor := market.NewProcessor(db, priceSource)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go priceProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())
	router.Use(collector.RequestMetrics())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authService, collector,
		authHandlers, accountsHandlers, transactionsHandlers,
		ordersHandlers, portfolioHandlers, marketHandlers, adminHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers. Routes are
// grouped by functionality: public auth routes, bearer-protected user
// routes, and admin routes gated by the allowlist policy.
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService *auth.Service,
	collector *metrics.Collector,
	authHandlers *auth.GinHandlers,
	accountsHandlers *accounts.GinHandlers,
	transactionsHandlers *transactions.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
	marketHandlers *market.GinHandlers,
	adminHandlers *admin.GinHandlers,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", collector.Handler())

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.GET("/me", middleware.JWTAuth(jwtSecret, authService), authHandlers.MeHandler())
		}

		// Everything below requires a valid bearer token
		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtSecret, authService))
		{
			accountsGroup := protected.Group("/accounts")
			{
				accountsGroup.POST("", accountsHandlers.CreateAccountHandler())
				accountsGroup.GET("/me", accountsHandlers.ListAccountsHandler())
			}

			transactionsGroup := protected.Group("/transactions")
			{
				transactionsGroup.POST("/create", transactionsHandlers.CreateTransactionHandler())
				transactionsGroup.GET("", transactionsHandlers.ListTransactionsHandler())
			}

			ordersGroup := protected.Group("/orders")
			{
				ordersGroup.POST("", ordersHandlers.PlaceOrderHandler())
				ordersGroup.GET("", ordersHandlers.ListOrdersHandler())
				ordersGroup.POST("/:order_id/cancel", ordersHandlers.CancelOrderHandler())
				ordersGroup.POST("/:order_id/execute", ordersHandlers.ExecuteOrderHandler())
			}

			portfolioGroup := protected.Group("/portfolio")
			{
				portfolioGroup.GET("/positions", portfolioHandlers.GetPositionsHandler())
				portfolioGroup.GET("/summary", portfolioHandlers.GetSummaryHandler())
			}

			protected.GET("/holdings", portfolioHandlers.ListHoldingsHandler())

			marketGroup := protected.Group("/market")
			{
				marketGroup.GET("/symbols", marketHandlers.ListSymbolsHandler())
				marketGroup.GET("/quote/:symbol", marketHandlers.GetQuoteHandler())
			}

			adminGroup := protected.Group("/admin")
			adminGroup.Use(adminHandlers.RequireAdmin())
			{
				adminGroup.POST("/users/:user_id/lock", adminHandlers.LockUserHandler())
				adminGroup.POST("/users/:user_id/unlock", adminHandlers.UnlockUserHandler())
				adminGroup.POST("/accounts/:account_id/lock", adminHandlers.LockAccountHandler())
				adminGroup.POST("/accounts/:account_id/unlock", adminHandlers.UnlockAccountHandler())
				adminGroup.GET("/users", adminHandlers.ListUsersHandler())
				adminGroup.GET("/audit-logs", adminHandlers.ListAuditLogsHandler())
			}
		}
	}
}
