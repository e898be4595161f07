package main // entry point of the appointment service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/iliyamo/specialist-booking/internal/booking"
	"github.com/iliyamo/specialist-booking/internal/cache"
	"github.com/iliyamo/specialist-booking/internal/client"
	"github.com/iliyamo/specialist-booking/internal/config"
	"github.com/iliyamo/specialist-booking/internal/database"
	"github.com/iliyamo/specialist-booking/internal/handler"
	"github.com/iliyamo/specialist-booking/internal/logger"
	"github.com/iliyamo/specialist-booking/internal/middleware"
	"github.com/iliyamo/specialist-booking/internal/obs"
	"github.com/iliyamo/specialist-booking/internal/queue"
	"github.com/iliyamo/specialist-booking/internal/repository"
	"github.com/iliyamo/specialist-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, config.LoadTracingConfig("appointment-service"))
	if err != nil {
		log.Error("tracing.init_failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("database.open_failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := database.Migrate(db, log); err != nil {
			log.Error("database.migrate_failed", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional; the limiter and cache fall back when it is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis.unavailable", "effect", "rate limiting off, in-process service cache")
	} else {
		defer rdb.Close()
	}

	directory := cache.NewCachedDirectory(
		client.NewDirectoryClient(cfg.DirectoryURL, cfg.UpstreamTimeout, log),
		cache.NewServiceCache(config.LoadCacheConfig(), rdb, log),
	)

	qcfg := config.LoadQueueConfig()
	bcfg := booking.Config{
		Directory: directory,
		Payments:  client.NewPaymentClient(cfg.PaymentURL, cfg.UpstreamTimeout, log),
		Schedule:  client.NewScheduleClient(cfg.ScheduleURL, cfg.UpstreamTimeout, log),
		Store:     repository.NewAppointmentRepo(db),
		Logger:    log,
		Tracer:    otel.Tracer("github.com/iliyamo/specialist-booking/internal/booking"),
	}
	if pub := queue.NewPublisher(qcfg, log); pub != nil {
		bcfg.Publisher = pub
		defer pub.Close()
	}
	if qcfg.ConsumerEnabled {
		go func() {
			if err := queue.StartAuditConsumer(ctx, qcfg, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("queue.audit_consumer_stopped", "error", err)
			}
		}()
	}
	svc := booking.NewService(bcfg)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.RequestLogger(log))

	router.RegisterHealth(e, handler.Health(log, db.PingContext))
	router.RegisterAppointments(e,
		handler.NewAppointmentHandler(svc, log),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	)

	addr := ":" + cfg.Port
	go func() {
		log.Info("server.listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server.failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("server.shutdown_failed", "error", err)
	}
	log.Info("server.stopped")
}
