package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/hotel-booking/internal/domain/auth"
	"github.com/xenking/hotel-booking/internal/domain/booking"
	"github.com/xenking/hotel-booking/internal/domain/coupon"
	"github.com/xenking/hotel-booking/internal/handler"
	"github.com/xenking/hotel-booking/internal/storage/postgres"
	redisstore "github.com/xenking/hotel-booking/internal/storage/redis"
	"github.com/xenking/hotel-booking/pkg/health"
	"github.com/xenking/hotel-booking/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	if cfg.CouponPepper == "" {
		lg.Warn("Coupon pepper is empty, code hashes are unkeyed")
	}
	if cfg.WebhookSecret == "" {
		lg.Warn("Webhook secret is empty, payment webhooks will be rejected")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	roomRepo := postgres.NewRoomRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	var couponStore coupon.Store = postgres.NewCouponRepository(pool)
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		couponStore = redisstore.NewCouponCache(rdb, couponStore, cfg.Coupon.CacheTTL,
			redisstore.WithMeterProvider(m.MeterProvider()),
		)
		lg.Info("Coupon cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Coupon.CacheTTL))
	}

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponStore, cfg.CouponPepper,
		coupon.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	)
	couponAdmin := coupon.NewAdmin(couponStore, cfg.CouponPepper)
	bookingService := booking.NewService(roomRepo, couponValidator, bookingRepo,
		booking.WithTracerProvider(m.TracerProvider()),
		booking.WithMaxNights(cfg.Booking.MaxNights),
	)
	authenticator := auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	// Background workers stop with ctx.
	workers, workersCtx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		return booking.NewJanitor(bookingService, cfg.Booking.PendingTTL, cfg.Booking.CleanupInterval).Run(workersCtx)
	})

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.Config{WebhookSecret: []byte(cfg.WebhookSecret)},
		roomRepo,
		couponValidator,
		bookingService,
		couponAdmin,
		authenticator,
	)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes())
	routeFinder := handler.MakeRouteFinder(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, handler.SignatureHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("hotel-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	if err := workers.Wait(); err != nil {
		return errors.Wrap(err, "background workers")
	}
	return nil
}
