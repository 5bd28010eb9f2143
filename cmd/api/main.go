package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/referral-coupon-service/internal/codegen"
	"github.com/fairyhunter13/referral-coupon-service/internal/config"
	"github.com/fairyhunter13/referral-coupon-service/internal/handler"
	"github.com/fairyhunter13/referral-coupon-service/internal/middleware"
	"github.com/fairyhunter13/referral-coupon-service/internal/repository"
	"github.com/fairyhunter13/referral-coupon-service/internal/service"
	"github.com/fairyhunter13/referral-coupon-service/internal/validator"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(cfg.DB.MigrationURL()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.Admin.KeyHash == "" {
		log.Warn().Msg("ADMIN_KEY_HASH is not set, administrative routes will fail")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Referral Coupon Service",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.AdminKeyHeader,
	}))
	app.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	validate := validator.New()
	codes := codegen.New()

	couponRepo := repository.NewCouponRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)
	accessCodeRepo := repository.NewAccessCodeRepository(pool)

	coupons := service.NewCouponLedger(pool, couponRepo, redemptionRepo, codes)
	accessCodes := service.NewAccessCodeLedger(pool, accessCodeRepo, codes)

	routes := handler.Routes{
		Health:       handler.NewHealthHandler(pool),
		Coupons:      handler.NewCouponHandler(coupons, validate),
		AdminCoupons: handler.NewAdminCouponHandler(coupons),
		AccessCodes:  handler.NewAccessCodeHandler(accessCodes, validate),
	}
	routes.Register(app, middleware.AdminAuth(cfg.Admin.KeyHash))

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Waits for in-flight requests
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
