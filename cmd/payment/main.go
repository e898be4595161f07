package main // entry point of the simulated payment service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/specialist-booking/internal/database"
	"github.com/iliyamo/specialist-booking/internal/handler"
	"github.com/iliyamo/specialist-booking/internal/logger"
	"github.com/iliyamo/specialist-booking/internal/middleware"
	"github.com/iliyamo/specialist-booking/internal/repository"
	"github.com/iliyamo/specialist-booking/internal/router"
)

type Cfg struct {
	PGPaymentDSN string `envconfig:"PG_PAYMENT_DSN" required:"true"`
	Port         string `envconfig:"PAYMENT_PORT" default:"8002"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	_ = godotenv.Load()
	var cfg Cfg
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Setup("info").Error("config.invalid", "error", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.OpenPostgres(ctx, cfg.PGPaymentDSN)
	if err != nil {
		log.Error("database.open_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.MigratePostgres(pool, log); err != nil {
		log.Error("database.migrate_failed", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.RequestLogger(log))
	router.RegisterHealth(e, handler.Health(log, pool.Ping))
	router.RegisterPayment(e, handler.NewPaymentHandler(repository.NewTransactionRepo(pool), log))

	go func() {
		log.Info("payment.listening", "addr", ":"+cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("payment.failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.Shutdown(sctx)
	log.Info("payment.stopped")
}
