// Package main starts the divvy API server.
//
//	@title			Divvy API
//	@version		1.0
//	@description	Group expense tracking with balance aggregation and debt simplification.
//	@BasePath		/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/divvyhq/divvy/docs"
	"github.com/divvyhq/divvy/internal/auth"
	"github.com/divvyhq/divvy/internal/config"
	"github.com/divvyhq/divvy/internal/database"
	"github.com/divvyhq/divvy/internal/expense"
	expensesplit "github.com/divvyhq/divvy/internal/expense/split"
	"github.com/divvyhq/divvy/internal/group"
	"github.com/divvyhq/divvy/internal/metrics"
	"github.com/divvyhq/divvy/internal/notification"
	"github.com/divvyhq/divvy/internal/settlement"
	"github.com/divvyhq/divvy/internal/user"
	"github.com/divvyhq/divvy/pkg/logging"
	mw "github.com/divvyhq/divvy/pkg/middleware"
)

func main() {
	logging.Setup()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("connected to database")

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	splitFactory := expensesplit.NewSplitStrategyFactory()

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo, jwtManager)
	userHandler := user.NewHandler(userService)

	// Group feature. The expense repository backs the member-activity check
	// that guards removals.
	expenseRepo := expense.NewRepository(db)
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo, expenseRepo)

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo)
	notificationHandler := notification.NewHandler(notificationService)

	// Expense feature (with split factory injected)
	expenseService := expense.NewService(expenseRepo, splitFactory, groupService, notificationService)
	expenseHandler := expense.NewHandler(expenseService)

	// Settlement feature: balances, debt simplification, payment recording
	settlementService := settlement.NewService(expenseService, groupService, notificationService)
	settlementHandler := settlement.NewHandler(settlementService)

	// Group balance endpoints live under /groups but belong to the
	// settlement feature.
	groupHandler := group.NewHandler(groupService, settlementHandler.GroupBalances, settlementHandler.GroupSuggested)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(mw.Metrics)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", userHandler.PublicRoutes())

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(jwtManager))

			r.Mount("/users", userHandler.Routes())
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/expenses", expenseHandler.Routes())
			r.Mount("/settlements", settlementHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	slog.Info("server starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
