package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/f4ntasma/codex/internal/api/http"
	"github.com/f4ntasma/codex/internal/api/http/handlers"
	"github.com/f4ntasma/codex/internal/config"
	"github.com/f4ntasma/codex/internal/enrollment"
	"github.com/f4ntasma/codex/internal/events"
	"github.com/f4ntasma/codex/internal/identity"
	"github.com/f4ntasma/codex/internal/observability"
	"github.com/f4ntasma/codex/internal/persistence"
	"github.com/f4ntasma/codex/internal/repository"
	"github.com/f4ntasma/codex/internal/session"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	pool := pg.PoolHandle()
	accountRepo := repository.NewAccountRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	loginLimiter := identity.NewAttemptLimiter(cfg.Auth.LoginRatePerMinute)
	otpLimiter := identity.NewAttemptLimiter(cfg.Otp.RequestsPerMinute)

	passwordVerifier := identity.NewPasswordVerifier(accountRepo, loginLimiter, logger)
	otpService := identity.NewOtpService(
		identity.NewRedisCodeStore(redis.Client),
		accountRepo,
		nil,
		otpLimiter,
		cfg.Otp.CodeTTL(),
		logger,
	)

	var federated identity.FederatedExchanger
	if cfg.Federated.Enabled {
		oidcExchanger, err := identity.NewOIDCExchanger(ctx, cfg.Federated)
		if err != nil {
			logger.Fatal("failed to init federated provider", zap.Error(err))
		}
		federated = oidcExchanger
	}

	verifier := identity.NewVerifier(passwordVerifier, federated, otpService, logger)

	tokens := session.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
	sessionStore := session.NewRedisStore(redis.Client)
	issuer := session.NewIssuer(tokens, sessionStore)
	resolver := session.NewResolver(tokens, sessionStore, profileRepo, logger)

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventLoggedIn, func(_ context.Context, event events.Event) error {
		logger.Info("subject logged in",
			zap.String("subject_id", event.SubjectID),
			zap.String("role", string(event.Role)))
		return nil
	})
	dispatcher.Subscribe(events.EventLoggedOut, func(_ context.Context, event events.Event) error {
		logger.Info("subject logged out", zap.String("subject_id", event.SubjectID))
		return nil
	})

	machine := enrollment.NewMachine(enrollment.Dependencies{
		Verifier:       verifier,
		Otp:            otpService,
		Captcha:        identity.NewHCaptchaVerifier(cfg.Captcha),
		Profiles:       profileRepo,
		Issuer:         issuer,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		AllowedDomains: cfg.Auth.AllowedSignupDomains,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:       handlers.NewAuthHandler(machine, federated, cfg.App, cfg.Auth),
		Showcase:   handlers.NewShowcaseHandler(),
		Resolver:   resolver,
		Metrics:    metrics,
		CookieName: cfg.Auth.CookieName,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
