package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scamwatch/internal/cache"
	"scamwatch/internal/classifier"
	"scamwatch/internal/config"
	"scamwatch/internal/httpserver"
	"scamwatch/internal/ingest"
	"scamwatch/internal/logging"
	"scamwatch/internal/metrics"
	"scamwatch/internal/sanction"
	"scamwatch/internal/store"
	"scamwatch/internal/telegram"
	"scamwatch/migrations"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func runService(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()

	mode := "dry-run"
	if cfg.Sender.Send {
		mode = "live"
	}
	logger.Info("starting scamwatch", "mode", mode, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	var (
		listCache classifier.ListCache
		deduper   ingest.Deduper = ingest.NewMemoryDeduper(cfg.Redis.DedupeTTL.Duration())
	)
	if cfg.Redis.Addr != "" {
		redisClient := cache.New(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Secrets.RedisPassword,
			DB:       cfg.Redis.DB,
			UseTLS:   cfg.Redis.TLS,
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
		listCache = redisClient
		deduper = ingest.NewRedisDeduper(redisClient, cfg.Redis.DedupeTTL.Duration())
	}

	lists := classifier.NewStoreLists(st, listCache, cfg.Redis.ListsTTL.Duration(), logger)
	detector := classifier.New(st, lists, cfg.Sender.Timeout.Duration(), logger)

	policy, err := sanction.ParseOverflowPolicy(cfg.Sender.Overflow)
	if err != nil {
		return fmt.Errorf("sanction queue: %w", err)
	}
	queue := sanction.NewQueue(cfg.Sender.QueueSize, policy, metricRegistry, logger)

	texts, err := sanction.LoadTexts(cfg.Paths.Message, cfg.Paths.ScammerAccount, cfg.Paths.About)
	if err != nil {
		return fmt.Errorf("load reply texts: %w", err)
	}

	zapLogger, err := logging.NewZap(cfg.Telegram.LogLevel, cfg.Telegram.LogFile)
	if err != nil {
		return fmt.Errorf("init mtproto logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	authz := telegram.NewAuthorization()
	defer authz.Stop()

	tgClient, err := telegram.New(telegram.Config{
		AppID:       cfg.Secrets.APIID,
		AppHash:     cfg.Secrets.APIHash,
		SessionPath: cfg.Telegram.SessionPath,
		Workers:     cfg.Telegram.Workers,
		Metrics:     metricRegistry,
		UpdateState: telegram.NewUpdateState(st),
	}, telegram.NewTerminalAuth(cfg.Secrets.Phone, cfg.Secrets.Password, os.Stdin, os.Stdout), authz, logger, zapLogger)
	if err != nil {
		return fmt.Errorf("init telegram client: %w", err)
	}

	dispatcher := ingest.New(ingest.Deps{
		Store:      st,
		Classifier: detector,
		Queue:      queue,
		Requester:  tgClient,
		Deduper:    deduper,
		Metrics:    metricRegistry,
	}, logger)
	tgClient.SetHandler(dispatcher)

	responder := sanction.NewResponder(queue, tgClient, st, texts, sanction.Config{
		Send:         cfg.Sender.Send,
		MinWait:      cfg.Sender.MinWait.Duration(),
		MaxWait:      cfg.Sender.MaxWait.Duration(),
		MaxPerMinute: cfg.Sender.MaxPerMinute,
	}, metricRegistry, logger)

	httpSrv := httpserver.New(cfg.HTTP.ListenAddr, logger, metricRegistry, httpserver.Dependencies{
		Auth:  authz,
		Store: st,
		Lists: lists,
		Queue: queue,
	}, cfg.HTTP.BasePath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := tgClient.Run(gctx); err != nil {
			return fmt.Errorf("telegram client: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return responder.Run(gctx)
	})
	g.Go(httpSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("scamwatch stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:   cfg.Store.Driver,
		URL:      cfg.Store.URL,
		Database: cfg.Store.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if m, ok := st.(store.Migrator); ok {
		if err := m.RunMigrations(ctx, migrations.Files); err != nil {
			closeStore(st, logger)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrated")
	}
	return st, nil
}

func closeStore(st store.Store, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		logger.Warn("failed closing store", "error", err)
	}
}
