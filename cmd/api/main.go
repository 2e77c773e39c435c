package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/apns-push/internal/config"
	"github.com/kursadbilgin/apns-push/internal/credentials"
	"github.com/kursadbilgin/apns-push/internal/handler"
	"github.com/kursadbilgin/apns-push/internal/infra/postgresql"
	"github.com/kursadbilgin/apns-push/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/apns-push/internal/infra/redis"
	"github.com/kursadbilgin/apns-push/internal/observability"
	"github.com/kursadbilgin/apns-push/internal/provider"
	"github.com/kursadbilgin/apns-push/internal/repository"
	"github.com/kursadbilgin/apns-push/internal/service"
	"github.com/kursadbilgin/apns-push/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger("apns-push", cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	}

	store, err := newCredentialStore(cfg, rdb)
	if err != nil {
		logger.Fatal("credential store initialization failed", zap.Error(err))
	}

	var (
		db       *gorm.DB
		sqlDB    *sql.DB
		attempts repository.AttemptRepository
	)
	if cfg.DatabaseDSN != "" {
		db, err = postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("postgres initialization failed", zap.Error(err))
		}
		if err := migrations.Migrate(db); err != nil {
			logger.Fatal("database migrations failed", zap.Error(err))
		}
		sqlDB, err = db.DB()
		if err != nil {
			logger.Fatal("postgres underlying db init failed", zap.Error(err))
		}
		defer sqlDB.Close()

		attempts = repository.NewGormAttemptRepo(db)
	}

	roots, err := provider.LoadRootCAs(cfg.APNSCAFile)
	if err != nil {
		logger.Fatal("gateway roots initialization failed", zap.Error(err))
	}

	gatewayClient, err := provider.NewGatewayClient(
		&provider.TLSDialer{RootCAs: roots, NetDialer: &net.Dialer{KeepAlive: -1}},
		cfg.ConnectTimeout(),
		cfg.WriteTimeout(),
		logger,
	)
	if err != nil {
		logger.Fatal("gateway client initialization failed", zap.Error(err))
	}

	pushService, err := service.NewPushService(
		store,
		gatewayClient,
		provider.GatewayPolicy{
			Production: provider.Gateway{Host: cfg.APNSProductionHost, Port: cfg.APNSPort},
			Sandbox:    provider.Gateway{Host: cfg.APNSSandboxHost, Port: cfg.APNSPort},
		},
		attempts,
		metrics,
		logger,
		service.PushOptions{
			StrictParams:      cfg.StrictParams,
			IncludeIdentifier: cfg.APNSIncludeIdentifier,
			MaxPayloadBytes:   cfg.APNSMaxPayloadBytes,
		},
	)
	if err != nil {
		logger.Fatal("push service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               "apns-push",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterPushRoutes(app, pushService); err != nil {
		logger.Fatal("push routes registration failed", zap.Error(err))
	}
	if attempts != nil {
		deliveryLog, err := service.NewDeliveryLog(attempts)
		if err != nil {
			logger.Fatal("delivery log initialization failed", zap.Error(err))
		}
		if err := handler.RegisterDeliveryRoutes(app, deliveryLog); err != nil {
			logger.Fatal("delivery routes registration failed", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + strconv.Itoa(cfg.APIPort)
		logger.Info("apns-push api started",
			zap.Int("port", cfg.APIPort),
			zap.String("credentialsSource", cfg.CredentialsSource),
			zap.Bool("auditTrail", attempts != nil),
		)
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api stopped with error", zap.Error(err))
		return
	}
	logger.Info("apns-push api stopped")
}

func newCredentialStore(cfg *config.Config, rdb *redis.Client) (credentials.Store, error) {
	switch cfg.CredentialsSource {
	case config.CredentialsSourceRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis client is required for %s credentials", cfg.CredentialsSource)
		}
		return credentials.NewRedisStore(rdb, cfg.RedisCredentialsKey)
	default:
		return credentials.LoadStatic(credentials.Source{
			Environment:     cfg.APNSEnvironment,
			CertificatePEM:  cfg.APNSCert,
			PrivateKeyPEM:   cfg.APNSKey,
			CertificateFile: cfg.APNSCertFile,
			PrivateKeyFile:  cfg.APNSKeyFile,
			P12File:         cfg.APNSP12File,
			P12Password:     cfg.APNSP12Password,
		})
	}
}
