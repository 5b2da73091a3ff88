package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"billing-app/config"
	"billing-app/database"
	adminapi "billing-app/internal/api/admin"
	authapi "billing-app/internal/api/auth"
	billingapi "billing-app/internal/api/billing"
	plansapi "billing-app/internal/api/plans"
	stripewebhooks "billing-app/internal/api/stripewebhook"
	routes "billing-app/internal/app/http"
	"billing-app/internal/domain/access"
	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/subscriptions"
	"billing-app/internal/domain/users"
	"billing-app/internal/infra/stripe"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	db := database.InitDB()

	store := subscriptions.NewStore(db)
	events := subscriptions.NewEventLog(db)
	audit := subscriptions.NewAuditLog(db)
	payments := billing.NewPaymentLog(db)

	provider := stripe.New(config.STRIPE_SECRET_KEY, stripe.WithTimeout(config.STRIPE_TIMEOUT))

	linker := subscriptions.NewCustomerLinker(store, provider, userEmailLookup(db))
	engine := subscriptions.NewEngine(store, linker, provider, access.NewGate(), audit, logger)
	reconciler := subscriptions.NewReconciler(store, events, engine, payments, logger)
	diagnostics := subscriptions.NewDiagnostics(store, provider)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Auth:    authapi.NewHandler(db, engine),
		Billing: billingapi.NewHandler(db, engine, payments),
		Plans:   plansapi.NewHandler(db, provider),
		Admin:   adminapi.NewHandler(engine, diagnostics, audit),
		Webhook: stripewebhooks.NewHandler(reconciler, config.STRIPE_WEBHOOK_SECRET, logger),
	})

	if err := r.Run(":" + config.PORT); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func userEmailLookup(db *gorm.DB) subscriptions.EmailLookup {
	return func(ctx context.Context, userID uint) (string, error) {
		var u users.User
		if err := db.WithContext(ctx).First(&u, userID).Error; err != nil {
			return "", err
		}
		return u.Email, nil
	}
}
