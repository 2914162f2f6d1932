package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/contact-service/internal/api/http"
	"github.com/spec-kit/contact-service/internal/api/http/handlers"
	"github.com/spec-kit/contact-service/internal/auth"
	"github.com/spec-kit/contact-service/internal/config"
	"github.com/spec-kit/contact-service/internal/events"
	"github.com/spec-kit/contact-service/internal/observability"
	"github.com/spec-kit/contact-service/internal/persistence"
	"github.com/spec-kit/contact-service/internal/repository"
	"github.com/spec-kit/contact-service/internal/repository/memory"
	"github.com/spec-kit/contact-service/internal/service"
	"github.com/spec-kit/contact-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("contact_service")

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	refreshOpts := repository.RefreshTokenOptions{
		TTL:      cfg.Auth.RefreshTokenTTL(),
		Generate: auth.GenerateRefreshSecret,
	}

	var (
		userRepo    repository.UserRepository
		contactRepo repository.ContactRepository
		refreshRepo repository.RefreshTokenRepository
		readiness   = map[string]handlers.Pinger{}
	)
	if pool != nil {
		userRepo = repository.NewUserRepository(pool)
		contactRepo = repository.NewContactRepository(pool)
		refreshRepo = repository.NewRefreshTokenRepository(pool, refreshOpts)
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory storage; data is lost on restart")
		users := memory.NewUsers()
		userRepo = users
		contactRepo = memory.NewContacts()
		refreshRepo = memory.NewRefreshTokens(users, refreshOpts)
	}

	if cfg.Auth.RefreshStore == config.RefreshStoreRedis {
		rdb := persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		refreshRepo = repository.NewRedisRefreshTokenRepository(rdb.Client, userRepo, refreshOpts)
		readiness["redis"] = rdb
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.JWTIssuer,
		Audience:  cfg.Auth.JWTAudience,
		AccessTTL: cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init password hasher", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:         userRepo,
		RefreshTokenRepo: refreshRepo,
		Tokens:           tokens,
		Hasher:           hasher,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	contactService := service.NewContactService(service.ContactDependencies{
		ContactRepo: contactRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.NewErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Users:          handlers.NewUsersHandler(authService, handlers.CookieOptions{Secure: cfg.Auth.CookieSecure}),
		Contacts:       handlers.NewContactsHandler(contactService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
		RateLimit: httptransport.NewRateLimitPerIP(httptransport.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			CacheSize:         cfg.RateLimit.CacheSize,
			TTL:               cfg.RateLimit.TTL(),
		}),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
