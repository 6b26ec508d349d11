package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinledger/backend/docs"
	"github.com/coinledger/backend/internal/audit"
	"github.com/coinledger/backend/internal/config"
	"github.com/coinledger/backend/internal/database"
	"github.com/coinledger/backend/internal/handlers"
	mW "github.com/coinledger/backend/internal/middleware"
	"github.com/coinledger/backend/internal/repository/postgres"
	"github.com/coinledger/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Coin Ledger API
// @version 1.0
// @description Coin ledger with per-game balances, pending reconciliation and summaries
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Load()
	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}
	ledgerConfig := config.LoadLedgerConfig()

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Coin Ledger API"
	docs.SwaggerInfo.Description = "Coin ledger with per-game balances, pending reconciliation and summaries"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := postgres.New(db)
	auditLogger := audit.NewAuditLogger()
	summaryCache := services.NewSummaryCache(redisClient, ledgerConfig.SummaryCacheTTL)

	balanceService := services.NewGameBalanceService(store, auditLogger)
	historyService := services.NewHistoryService(store, auditLogger, ledgerConfig.HistoryLimit)
	ledgerService := services.NewLedgerService(store, balanceService, historyService, summaryCache, auditLogger, ledgerConfig)
	reportService := services.NewReportService(store, summaryCache, ledgerConfig)
	authService := services.NewAuthService(store, redisClient)

	ledgerHandler := handlers.NewLedgerHandler(ledgerService, historyService)
	reportHandler := handlers.NewReportHandler(reportService)
	gameHandler := handlers.NewGameHandler(balanceService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy", "database": "up", "redis": "disabled"}
		code := http.StatusOK

		if err := db.PingContext(r.Context()); err != nil {
			status["status"], status["database"] = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["redis"] = "up"
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				status["redis"] = "down"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/ledger/entries", ledgerHandler.CreateEntry)
			r.Get("/ledger/entries", ledgerHandler.ListEntries)
			r.Put("/ledger/entries/{id}", ledgerHandler.UpdateEntry)
			r.Delete("/ledger/entries/{id}", ledgerHandler.DeleteEntry)
			r.Post("/ledger/entries/{id}/clear-pending", ledgerHandler.ClearPending)
			r.Get("/ledger/entries/{id}/history", ledgerHandler.ListHistory)

			r.Get("/ledger/pending", reportHandler.ListPending)
			r.Get("/ledger/pending/{playerTag}", reportHandler.LookupPending)
			r.Get("/ledger/summary", reportHandler.Summary)
			r.Get("/ledger/summary/games", reportHandler.GameSummary)

			r.Get("/games", gameHandler.ListGames)
			r.Get("/games/{name}", gameHandler.GetGame)
			r.With(mW.RequireAdmin).Post("/games", gameHandler.CreateGame)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
