// Command server starts the Photoseleven API HTTP service.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"photoseleven/internal/api"
	"photoseleven/internal/auth"
	"photoseleven/internal/gallery"
	"photoseleven/internal/observability/logging"
	"photoseleven/internal/server"
	"photoseleven/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (file or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresAcquireTimeout := flag.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	mediaDir := flag.String("media-dir", "", "directory for uploaded media blobs")
	mediaChunkSize := flag.Int("media-chunk-size", 0, "buffer size in bytes for streaming media transfers")
	tokenSecret := flag.String("token-secret", "", "HMAC secret for signing bearer tokens")
	tokenSecretFile := flag.String("token-secret-file", "", "path to a file holding the token signing secret")
	tokenValidity := flag.Duration("token-validity", 0, "lifetime of issued bearer tokens")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisUsername := flag.String("rate-redis-username", "", "Redis username for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisDB := flag.Int("rate-redis-db", 0, "Redis database index for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("PHOTOSELEVEN_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("PHOTOSELEVEN_LOG_FORMAT")),
	})

	serverMode := modeValue(*mode, os.Getenv("PHOTOSELEVEN_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("PHOTOSELEVEN_ADDR"))

	secret, generated, err := resolveTokenSecret(*tokenSecret, *tokenSecretFile, serverMode)
	if err != nil {
		logger.Error("failed to resolve token secret", "error", err)
		os.Exit(1)
	}
	if generated {
		logger.Warn("no token secret configured, using an ephemeral secret; issued tokens will not survive a restart")
	}
	tokens := auth.NewTokenService(secret, resolveDuration(*tokenValidity, "PHOTOSELEVEN_TOKEN_VALIDITY", 0))

	media, err := gallery.NewStore(gallery.Config{
		BaseDir:   resolveMediaDir(*mediaDir, os.Getenv("PHOTOSELEVEN_MEDIA_DIR")),
		ChunkSize: resolveInt(*mediaChunkSize, "PHOTOSELEVEN_MEDIA_CHUNK_SIZE"),
	})
	if err != nil {
		logger.Error("failed to open media store", "error", err)
		os.Exit(1)
	}

	postgresDefaultDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveStorageDriver(*storageDriver, os.Getenv("PHOTOSELEVEN_STORAGE_DRIVER"), postgresDefaultDSN)
	if err != nil {
		logger.Error("failed to resolve storage driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" && driver != "postgres" {
		logger.Error("production mode requires the postgres datastore driver", "driver", driver)
		os.Exit(1)
	}

	var store storage.Repository
	switch driver {
	case "file":
		dataFile := resolveDataPath(*dataPath, os.Getenv("PHOTOSELEVEN_DATA"))
		store, err = storage.NewFileRepository(dataFile)
	case "postgres":
		if postgresDefaultDSN == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
		store, err = storage.NewPostgresRepository(bootCtx, storage.PostgresConfig{
			DSN:             postgresDefaultDSN,
			MaxConnections:  int32(resolveInt(*postgresMaxConns, "PHOTOSELEVEN_POSTGRES_MAX_CONNS")),
			MinConnections:  int32(resolveInt(*postgresMinConns, "PHOTOSELEVEN_POSTGRES_MIN_CONNS")),
			MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, "PHOTOSELEVEN_POSTGRES_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime: resolveDuration(*postgresMaxConnIdle, "PHOTOSELEVEN_POSTGRES_MAX_CONN_IDLE", 0),
			AcquireTimeout:  resolveDuration(*postgresAcquireTimeout, "PHOTOSELEVEN_POSTGRES_ACQUIRE_TIMEOUT", 0),
			ApplicationName: firstNonEmpty(*postgresAppName, os.Getenv("PHOTOSELEVEN_POSTGRES_APP_NAME")),
		})
		bootCancel()
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, tokens, media, logging.WithComponent(logger, "api"))

	rateCfg := server.RateLimitConfig{
		GlobalRPS:     resolveFloat(*globalRPS, "PHOTOSELEVEN_RATE_GLOBAL_RPS"),
		GlobalBurst:   resolveInt(*globalBurst, "PHOTOSELEVEN_RATE_GLOBAL_BURST"),
		LoginLimit:    resolveInt(*loginLimit, "PHOTOSELEVEN_RATE_LOGIN_LIMIT"),
		LoginWindow:   resolveDuration(*loginWindow, "PHOTOSELEVEN_RATE_LOGIN_WINDOW", time.Minute),
		RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("PHOTOSELEVEN_RATE_REDIS_ADDR")),
		RedisUsername: firstNonEmpty(*redisUsername, os.Getenv("PHOTOSELEVEN_RATE_REDIS_USERNAME")),
		RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("PHOTOSELEVEN_RATE_REDIS_PASSWORD")),
		RedisDB:       resolveInt(*redisDB, "PHOTOSELEVEN_RATE_REDIS_DB"),
		RedisTimeout:  resolveDuration(*redisTimeout, "PHOTOSELEVEN_RATE_REDIS_TIMEOUT", 2*time.Second),
	}

	tlsCfg := server.TLSConfig{
		CertFile: firstNonEmpty(*tlsCert, os.Getenv("PHOTOSELEVEN_TLS_CERT")),
		KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("PHOTOSELEVEN_TLS_KEY")),
	}

	srv, err := server.New(handler, server.Config{
		Addr:      listenAddr,
		TLS:       tlsCfg,
		RateLimit: rateCfg,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Photoseleven API listening", "addr", listenAddr, "mode", serverMode, "storage", driver)
		if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
			logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
		}
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	} else if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close datastore", "error", err)
		}
	}

	logger.Info("server stopped")
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

// resolveTokenSecret reads the signing secret from the flag, the
// PHOTOSELEVEN_TOKEN_SECRET environment variable, or a secret file, in that
// order. Production refuses to start without one; development falls back to a
// random ephemeral secret.
func resolveTokenSecret(flagValue, flagFile, mode string) ([]byte, bool, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return []byte(secret), false, nil
	}
	if secret := strings.TrimSpace(os.Getenv("PHOTOSELEVEN_TOKEN_SECRET")); secret != "" {
		return []byte(secret), false, nil
	}
	secretFile := firstNonEmpty(flagFile, os.Getenv("PHOTOSELEVEN_TOKEN_SECRET_FILE"))
	if secretFile != "" {
		raw, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, false, fmt.Errorf("read token secret file: %w", err)
		}
		secret := strings.TrimSpace(string(raw))
		if secret == "" {
			return nil, false, fmt.Errorf("token secret file %s is empty", secretFile)
		}
		return []byte(secret), false, nil
	}
	if mode == "production" {
		return nil, false, fmt.Errorf("production mode requires a token secret: set --token-secret, PHOTOSELEVEN_TOKEN_SECRET, or --token-secret-file")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate ephemeral token secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), true, nil
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "file", nil
}

func resolveDataPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	return "data/users.json"
}

func resolveMediaDir(flagValue, envValue string) string {
	if dir := firstNonEmpty(flagValue, envValue); dir != "" {
		return dir
	}
	return "data/media"
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("PHOTOSELEVEN_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}
