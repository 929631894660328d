package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"susu/internal/amqp"
	"susu/internal/auth"
	"susu/internal/cache"
	"susu/internal/cli"
	apphttp "susu/internal/http"
	"susu/internal/log"
	"susu/internal/metrics"
	"susu/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, "")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

	ctx := context.Background()
	res := cli.OpenStore(ctx, logger, cfg)
	st := res.Store

	// Read-through cache shared by every service
	readCache := cache.NewReadThrough(cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(readCache)
	cacheManager.StartCleanup(time.Minute)

	m := metrics.New()
	m.RegisterCache("read_through", readCache)

	// Events are optional; without a broker mutations still succeed.
	var pub services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
		} else {
			amqpClient = client
			pub = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no events will be published")
	}
	notifier := services.NewNotifier(pub)

	jwt := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	users := services.NewUserService(st, jwt)
	if err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		cli.Fatal(logger, "Failed to create bootstrap admin", err)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           cfg.Addr(),
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
		JWT:            jwt,
		Store:          st,
		Metrics:        m,
		Logger:         logger,
	}, apphttp.Services{
		Slots:     services.NewSlotService(st, readCache, notifier),
		Groups:    services.NewGroupService(st, readCache),
		Members:   services.NewMemberService(st, readCache),
		Payments:  services.NewPaymentService(st, readCache, notifier),
		Analytics: services.NewAnalyticsService(st, readCache),
		Users:     users,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		var errs []error
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	logger.Info("Starting susu server",
		"addr", cfg.Addr(),
		"backend", cfg.DataBackend,
		"cache_ttl", cfg.CacheTTL.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
