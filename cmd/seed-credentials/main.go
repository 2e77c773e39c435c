package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kursadbilgin/apns-push/internal/config"
	"github.com/kursadbilgin/apns-push/internal/credentials"
	infraredis "github.com/kursadbilgin/apns-push/internal/infra/redis"
	"github.com/kursadbilgin/apns-push/internal/observability"
	"go.uber.org/zap"
)

// seed-credentials copies the APNS_* credential settings into the Redis hash
// read by the api when CREDENTIALS_SOURCE=redis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger("apns-push-seed", cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.RedisURL == "" {
		logger.Fatal("REDIS_URL is required to seed credentials")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	store, err := credentials.NewRedisStore(rdb, cfg.RedisCredentialsKey)
	if err != nil {
		logger.Fatal("credential store initialization failed", zap.Error(err))
	}

	creds, err := store.Seed(ctx, credentials.Source{
		Environment:     cfg.APNSEnvironment,
		CertificatePEM:  cfg.APNSCert,
		PrivateKeyPEM:   cfg.APNSKey,
		CertificateFile: cfg.APNSCertFile,
		PrivateKeyFile:  cfg.APNSKeyFile,
		P12File:         cfg.APNSP12File,
		P12Password:     cfg.APNSP12Password,
	})
	if err != nil {
		logger.Fatal("seeding credentials failed", zap.Error(err))
	}

	logger.Info("credentials seeded",
		zap.String("key", cfg.RedisCredentialsKey),
		zap.String("environment", creds.GatewayEnvironment().String()),
	)
}
