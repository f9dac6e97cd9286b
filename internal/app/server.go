// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"mesafacil-billing/internal/config"
	"mesafacil-billing/internal/db"
	"mesafacil-billing/internal/domain/billing"
	billingHandler "mesafacil-billing/internal/handlers/billing"
	webhookHandler "mesafacil-billing/internal/handlers/webhook"
	"mesafacil-billing/internal/middleware"
	"mesafacil-billing/internal/pkg/tasks"
	stripegw "mesafacil-billing/internal/provider/stripe"
	"mesafacil-billing/internal/provider/wompi"
	"mesafacil-billing/internal/realtime"
	"mesafacil-billing/internal/repository/postgres"
	billingUsecase "mesafacil-billing/internal/service/billing"
	"mesafacil-billing/internal/service/email"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	runner *tasks.Runner
}

func NewServer() *Server {
	cfg := config.Load()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	var logger *zap.Logger
	if s.cfg.IsProduction() {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- Background tasks -----
	s.runner = tasks.NewRunner(4, 256, 30*time.Second, logger)

	// ----- Email -----
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Providers -----
	stripeGateway := stripegw.NewGateway(
		s.cfg.StripeSecretKey,
		s.cfg.StripeWebhookSecret,
		stripegw.PlanPriceIDs{
			billing.PlanPro: {
				billing.PeriodMonthly: s.cfg.StripePriceIDs["pro_monthly"],
				billing.PeriodYearly:  s.cfg.StripePriceIDs["pro_yearly"],
			},
			billing.PlanPremium: {
				billing.PeriodMonthly: s.cfg.StripePriceIDs["premium_monthly"],
				billing.PeriodYearly:  s.cfg.StripePriceIDs["premium_yearly"],
			},
		},
	)
	wompiClient := wompi.NewClient(s.cfg.WompiBaseURL, s.cfg.WompiPublicKey, s.cfg.WompiPrivateKey)
	wompiVerifier := wompi.NewVerifier(s.cfg.WompiEventsSecret, s.cfg.IsProduction(), logger)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)

	// ----- Services -----
	publisher := realtime.NewPublisher(redisClient, logger)
	notifier := billingUsecase.NewNotifier(s.runner, emailSender, publisher, logger)
	normalizer := billingUsecase.NewNormalizer(logger)
	ledger := billingUsecase.NewLedger(paymentRepo, logger)
	lifecycle := billingUsecase.NewLifecycle(dbWrapper, subscriptionRepo, tenantRepo, ledger, logger)
	matcher := billingUsecase.NewMatcher(subscriptionRepo, logger)
	reconciler := billingUsecase.NewReconciler(normalizer, matcher, lifecycle, tenantRepo, notifier, logger)
	checkout := billingUsecase.NewCheckoutService(
		tenantRepo,
		subscriptionRepo,
		paymentRepo,
		normalizer,
		lifecycle,
		stripeGateway,
		wompiClient,
		notifier,
		logger,
	)
	checkout.SetSettleDelay(s.cfg.SettleDelay)

	// ----- Handlers -----
	billingHandlerInst := billingHandler.NewBillingHandler(checkout)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(reconciler, stripeGateway, wompiVerifier, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(s.cfg.JWTSecret)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		BillingHandler: billingHandlerInst,
		WebhookHandler: webhookHandlerInst,
		AuthMiddleware: authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown drains the background task runner.
func (s *Server) Shutdown(ctx context.Context) {
	if s.runner != nil {
		s.runner.Close()
	}
}
