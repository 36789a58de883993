package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"marketplace_back_end/internal/auth"
	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/config"
	"marketplace_back_end/internal/coupon"
	"marketplace_back_end/internal/database"
	"marketplace_back_end/internal/handlers/payement"
	"marketplace_back_end/internal/handlers/product"
	"marketplace_back_end/internal/handlers/user"
	"marketplace_back_end/internal/health"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/order"
	"marketplace_back_end/internal/payment"
	"marketplace_back_end/internal/repository"
	"marketplace_back_end/internal/routes"
	"marketplace_back_end/internal/services"
	"marketplace_back_end/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Pas encore de logger configuré.
		_, _ = os.Stderr.WriteString("❌ " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		_, _ = os.Stderr.WriteString("❌ " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("❌ Arrêt du serveur", zap.Error(err))
	}
	logger.Info("👋 Serveur arrêté")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse LOG_LEVEL")
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// =============================================
	// CLIENTS
	// =============================================
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.RunMigrations(ctx, pool); err != nil {
		return err
	}
	logger.Info("✅ PostgreSQL connecté")

	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	logger.Info("✅ Redis connecté")

	scylla, err := database.NewScyllaSession(cfg.Scylla)
	if err != nil {
		return err
	}
	if scylla != nil {
		defer scylla.Close()
		logger.Info("✅ ScyllaDB connecté")
	} else {
		logger.Warn("⚠️ ScyllaDB non configuré, journal d'audit dans les logs")
	}

	es, err := database.NewElastic(cfg.Elastic)
	if err != nil {
		return err
	}
	if es == nil {
		logger.Warn("⚠️ Elasticsearch non configuré, recherche SQL")
	}

	minioClient, err := database.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return err
	}
	if minioClient == nil {
		logger.Warn("⚠️ MinIO non configuré, upload d'images désactivé")
	}

	// =============================================
	// SERVICES
	// =============================================
	kv := cache.NewRedisKV(rdb)
	users := repository.NewUserRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	journal := utils.NewJournal(scylla, logger)
	mailer := utils.NewMailer(cfg.SMTP, logger)
	sessions := auth.NewSessions(
		utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL),
		cache.NewTokenStore(kv),
		users,
	)

	notifier := services.NewNotifier(notificationRepo, users, rdb, mailer, logger)
	orders := order.NewService(orderRepo, payment.NewStripeGateway(cfg.Stripe, logger), notifier, journal, logger)
	index := services.NewProductIndex(es, cfg.Elastic.ProductIndex, logger)

	var invoices user.InvoiceRenderer
	if cfg.Invoice.Enabled {
		invoices = utils.NewInvoiceRenderer(cfg.Invoice.CompanyName, cfg.Invoice.RenderLimit)
	}

	probes := health.New(logger)
	probes.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error { return pool.Ping(ctx) })
	probes.AddReadinessCheck("redis", 3*time.Second, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	probes.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	h := routes.Handlers{
		Auth: user.NewAuthHandler(users,
			cache.NewOTPService(kv, cfg.OTP.Expiry),
			cache.NewResetTokens(kv, cfg.OTP.ResetTTL),
			sessions, mailer, logger),
		Cart:          user.NewCartHandler(repository.NewCartRepository(pool), logger),
		Orders:        user.NewOrderHandler(orders, invoices, users, cfg.Invoice.Concurrency, cfg.PageSize, logger),
		Wishlist:      user.NewWishlistHandler(repository.NewWishlistRepository(pool, catalogRepo), cfg.PageSize, logger),
		Notifications: user.NewNotificationHandler(notificationRepo, rdb, cfg.CORS.Origins, cfg.PageSize, logger),
		Categories:    product.NewCategoryHandler(catalogRepo, logger),
		Products: product.NewProductHandler(services.NewCatalog(catalogRepo, index, logger), catalogRepo, index,
			services.NewImageStore(minioClient, cfg.MinIO, logger), cfg.PageSize, logger),
		Payments: payement.NewPaymentHandler(orders, logger),
		Coupons: payement.NewCouponHandler(
			coupon.NewValidator(couponRepo, orderRepo, journal, logger),
			coupon.NewManager(couponRepo, journal, logger),
			cfg.PageSize, logger),
		Webhook: payement.NewWebhookHandler(orders, cfg.Stripe.WebhookSecret, logger),
		Health:  probes,
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("⚠️ STRIPE_WEBHOOK_SECRET manquant, webhook désactivé")
	}

	counter := middleware.NewRedisCounter(rdb)
	rl := cfg.RateLimits
	mw := routes.Middlewares{
		Auth:          middleware.AuthRequired(sessions, logger),
		LoginLimit:    middleware.RateLimit(counter, "login", rl.LoginMax, rl.LoginWindow, logger),
		RegisterLimit: middleware.RateLimit(counter, "register", rl.RegisterMax, rl.RegisterWindow, logger),
		ForgotLimit:   middleware.RateLimit(counter, "forgot", rl.ForgotMax, rl.ForgotWindow, logger),
		APILimit:      middleware.RateLimit(counter, "api", rl.APIMax, rl.APIWindow, logger),
	}

	// =============================================
	// HTTP
	// =============================================
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.Origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	routes.RegisterRoutes(r, h, mw)

	// Pas de WriteTimeout : le flux websocket reste ouvert.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "marketplace-api"),
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	probes.Start(ctx, 10*time.Second)
	probes.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 Serveur lancé", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		probes.SetReady(false)
		logger.Info("⏳ Readiness à false, drainage", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()
		defer probes.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
