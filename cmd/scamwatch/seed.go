package main

import (
	"fmt"

	"scamwatch/internal/cache"
	"scamwatch/internal/classifier"
	"scamwatch/internal/config"
	"scamwatch/internal/logging"

	"github.com/spf13/cobra"
)

func runSeed(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if path == "" {
		path = cfg.Paths.Keywords
	}
	if path == "" {
		return &config.ConfigError{Field: "paths.keywords", Reason: "required by seed"}
	}

	logger := logging.NewLogger(cfg.Log.Level)
	ctx := cmd.Context()

	seed, err := classifier.LoadSeed(path)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	if err := seed.Apply(ctx, st); err != nil {
		return fmt.Errorf("seed lists: %w", err)
	}

	if cfg.Redis.Addr != "" {
		redisClient := cache.New(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Secrets.RedisPassword,
			DB:       cfg.Redis.DB,
			UseTLS:   cfg.Redis.TLS,
		}, logger)
		defer redisClient.Close()
		lists := classifier.NewStoreLists(st, redisClient, cfg.Redis.ListsTTL.Duration(), logger)
		if err := lists.Invalidate(ctx); err != nil {
			logger.Warn("cached lists not invalidated", "error", err)
		}
	}

	logger.Info("lists seeded",
		"file", path,
		"keywords", len(seed.All()),
		"forbidden_names", len(seed.ForbiddenNames),
	)
	return nil
}
