package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"receptionist/internal/api"
	"receptionist/internal/config"
	"receptionist/internal/database"
	"receptionist/internal/domain"
	"receptionist/internal/events"
	"receptionist/internal/logging"
	"receptionist/internal/metrics"
	"receptionist/internal/notifier"
	"receptionist/internal/pgstore"
	"receptionist/internal/repository"
	"receptionist/internal/service"
	"receptionist/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, sqliteDB, err := initStore(ctx, cfg, loc, &logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cache := initProfileCache(redisClient, &logger)
	directory := config.NewProfileDirectory(cfg.Businesses.Dir)
	if ids, err := directory.IDs(); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.Businesses.Dir).Msg("list business profiles")
	} else if len(ids) == 0 {
		logger.Warn().Str("dir", cfg.Businesses.Dir).Msg("no business profiles found")
	} else {
		logger.Info().Strs("businesses", ids).Msg("business profiles found")
	}
	profiles := repository.NewCachedBusinessProvider(
		directory,
		cache,
		cfg.Businesses.CacheTTLDuration(),
		&logger,
	)

	bus := events.NewEventBus(&logger)
	if cfg.Notifications.Enabled {
		notificationWorker, err := initNotifications(cfg, sqliteDB, redisClient, &logger)
		if err != nil {
			return err
		}
		notifier.NewDispatcher(profiles, notificationWorker, &logger).Attach(bus)
		go notificationWorker.Start(ctx)
	}

	if sqliteDB != nil && cfg.Backup.Enabled {
		backup := database.NewBackupService(sqliteDB, cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	receptionist := service.NewReceptionist(profiles, repo, bus, loc, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, repo, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(&cfg.API, api.Dependencies{
		Receptionist:     receptionist,
		Profiles:         profiles,
		Repo:             repo,
		Cache:            cache,
		WebhookRateLimit: cfg.Businesses.WebhookRateLimit,
		ExportDir:        cfg.Exports.Path,
		Failed:           failedLister(repo),
	}, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, *logging.Component(baseLogger, "receptionist-main"), closer, nil
}

// initStore returns the sqlite handle separately because backups and the durable queue need it.
func initStore(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) (domain.Repository, *database.DB, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		store, err := pgstore.Open(ctx, cfg.Database.Postgres.DSN(), loc, logger)
		if err != nil {
			logger.Error().Err(err).Str("host", cfg.Database.Postgres.Host).Msg("init postgres")
			return nil, nil, err
		}
		return store, nil, nil
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, nil, err
	}
	db.SetLocation(loc)
	return db, db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initProfileCache(redisClient *redis.Client, logger *zerolog.Logger) domain.ProfileCache {
	memory := repository.NewMemoryProfileCache()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverProfileCache(repository.NewRedisProfileCache(redisClient), memory, logger)
}

func initNotifications(
	cfg *config.Config,
	sqliteDB *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (*worker.NotificationWorker, error) {
	ncfg := cfg.Notifications

	senders := []notifier.Sender{notifier.NewLogSender(logger)}

	timeout, err := time.ParseDuration(ncfg.SMS.Timeout)
	if err != nil {
		return nil, fmt.Errorf("parse sms timeout %q: %w", ncfg.SMS.Timeout, err)
	}
	senders = append(senders, notifier.NewWebhookSender(ncfg.SMS.WebhookURL, ncfg.SMS.Token, timeout))

	if ncfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(ncfg.Telegram.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram bot init failed, telegram notifications disabled")
		} else {
			bot.Debug = ncfg.Telegram.Debug
			logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
			senders = append(senders, notifier.NewTelegramSender(bot))
		}
	}

	var store domain.NotificationQueue
	var queueRedis *redis.Client
	switch ncfg.Queue {
	case "sqlite":
		if sqliteDB == nil {
			return nil, errors.New("sqlite notification queue requires the sqlite database driver")
		}
		store = sqliteDB
	case "redis":
		if redisClient == nil {
			logger.Warn().Msg("redis unavailable, notifications fall back to the memory queue")
		}
		queueRedis = redisClient
	}

	logger.Info().Str("queue", ncfg.Queue).Int("senders", len(senders)).Msg("notifications enabled")
	return worker.NewNotificationWorker(store, queueRedis, senders, worker.RetryPolicyFromConfig(ncfg.Retry), logger), nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go grpcServer.WatchHealth(ctx)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("receptionist started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("receptionist stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func failedLister(repo domain.Repository) domain.FailedNotificationLister {
	if l, ok := repo.(domain.FailedNotificationLister); ok {
		return l
	}
	return nil
}
