package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/proyecto-sophia/cra-backend/internal/config"
	"github.com/proyecto-sophia/cra-backend/internal/database"
	"github.com/proyecto-sophia/cra-backend/internal/handler"
	"github.com/proyecto-sophia/cra-backend/internal/logger"
	appmw "github.com/proyecto-sophia/cra-backend/internal/middleware"
	"github.com/proyecto-sophia/cra-backend/internal/queue"
	"github.com/proyecto-sophia/cra-backend/internal/repository"
	"github.com/proyecto-sophia/cra-backend/internal/router"
	"github.com/proyecto-sophia/cra-backend/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	zl, err := logger.New()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	rules := cfg.Rules()

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	bookRepo := repository.NewBookRepo(db)
	resourceRepo := repository.NewResourceRepo(db)
	loanRepo := repository.NewLoanRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	items := repository.NewItemDirectory(db)

	authHandler := handler.NewAuthHandler(userRepo, tokenRepo, cfg)
	userHandler := handler.NewUserHandler(userRepo, cfg, zl)
	bookHandler := handler.NewBookHandler(bookRepo)
	resourceHandler := handler.NewResourceHandler(resourceRepo)
	loanHandler := handler.NewLoanHandler(loanRepo, reservationRepo, userRepo, items, rules, zl)
	reservationHandler := handler.NewReservationHandler(reservationRepo, loanRepo, userRepo, items, rules, zl, loanHandler)
	inventoryHandler := handler.NewInventoryHandler(items, zl)
	dashboardHandler := handler.NewDashboardHandler(loanRepo, reservationRepo, userRepo, items)
	publicHandler := handler.NewPublicCatalogHandler(bookRepo, resourceRepo)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	// Redis backs the rate limiter and the public-catalog response cache.
	// Both degrade to pass-through when Redis is absent.
	rdb := config.NewRedisClient()
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(appmw.NewRedisCache(config.LoadCacheConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, publicHandler)
	router.RegisterLending(e, loanHandler, reservationHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, bookHandler, resourceHandler, userHandler, inventoryHandler, dashboardHandler, cfg.JWTSecret)

	// Background sweep: expire stale reservations, flag overdue loans.
	sweepEvery, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		zl.Fatal("invalid RESERVATION_SWEEP_INTERVAL", zap.String("value", cfg.SweepInterval), zap.Error(err))
	}
	sweeper := worker.NewExpirySweeper(db, reservationRepo, loanRepo, items, sweepEvery, zl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	// Sanction events land in logs/sanciones.log via the broker consumer.
	go func() {
		if err := queue.StartSanctionConsumer(); err != nil {
			zl.Warn("sanction consumer stopped", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
