package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-class-booking/internal/config"
	"github.com/iliyamo/studio-class-booking/internal/database"
	"github.com/iliyamo/studio-class-booking/internal/handler"
	"github.com/iliyamo/studio-class-booking/internal/logger"
	"github.com/iliyamo/studio-class-booking/internal/metrics"
	appmw "github.com/iliyamo/studio-class-booking/internal/middleware"
	"github.com/iliyamo/studio-class-booking/internal/queue"
	"github.com/iliyamo/studio-class-booking/internal/repository"
	"github.com/iliyamo/studio-class-booking/internal/router"
	"github.com/iliyamo/studio-class-booking/internal/service"
	"github.com/iliyamo/studio-class-booking/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Log.Sync() }()
	metrics.Register()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}
	defer db.Close()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(bootCtx, db); err != nil {
		log.Fatalf("database schema: %v", err)
	}
	bootCancel()

	// Repositories and the transactional store.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db)
	wallets := repository.NewWalletRepo(db)
	reservations := repository.NewReservationRepo(db)
	waitlistRepo := repository.NewWaitlistRepo(db)
	store := repository.NewSQLStore(db)

	// Services.  The waitlist notifier publishes to RabbitMQ; the
	// consumer below turns those messages into outbound mail.
	notifier := queue.NewPublisher()
	waitlist := service.NewWaitlistService(store, notifier,
		cfg.WaitlistMax, time.Duration(cfg.AcceptWindowMin)*time.Minute)
	booking := service.NewBookingEngine(store, waitlist,
		time.Duration(cfg.CancelWindowHours)*time.Hour)
	credits := service.NewCreditService(store)

	go func() {
		if err := queue.StartNotifiedConsumer(); err != nil {
			logger.Log.Error("waitlist consumer stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sweeper := worker.NewSweeper(waitlist, time.Duration(cfg.SweepIntervalSec)*time.Second)
	go sweeper.Run(ctx)

	e := echo.New()
	e.HideBanner = true

	var rateLimit echo.MiddlewareFunc
	if rdb := config.NewRedisClient(); rdb != nil {
		rateLimit = appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	} else {
		logger.Log.Warn("redis unreachable, rate limiting disabled")
	}

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, tokens),
		Browse:   handler.NewBrowseHandler(sessions),
		Booking:  handler.NewBookingHandler(booking, reservations),
		Waitlist: handler.NewWaitlistHandler(waitlist, waitlistRepo),
		Credits:  handler.NewCreditsHandler(credits, wallets),
		Admin:    handler.NewAdminHandler(sessions, reservations, credits),
	}, cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	logger.Log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutCtx); err != nil {
			logger.Log.Error("server shutdown", zap.Error(err))
		}
	}()

	if err := e.Start(addr); err != nil {
		logger.Log.Info("server stopped", zap.Error(err))
	}
}
