package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nullptr0807/runhub/internal/api"
	"github.com/nullptr0807/runhub/internal/config"
	"github.com/nullptr0807/runhub/internal/hub"
	"github.com/nullptr0807/runhub/internal/logger"
	"github.com/nullptr0807/runhub/internal/metrics"
	"github.com/nullptr0807/runhub/internal/notifier/webhook"
	"github.com/nullptr0807/runhub/internal/storage/archive"
	"github.com/nullptr0807/runhub/internal/storage/runstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RunHub server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logger.Level
	if debug {
		level = "debug"
	}
	log := logger.Must(level, cfg.Logger.Format)
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	log.Info("starting RunHub server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	store, err := runstore.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	arch, err := buildArchive(cfg)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	var notifier *webhook.Notifier
	if cfg.Webhooks.Enabled {
		notifier = webhook.New(webhook.Config{
			URLs:    cfg.Webhooks.URLs,
			Headers: cfg.Webhooks.Headers,
			Timeout: time.Duration(cfg.Webhooks.TimeoutMS) * time.Millisecond,
			Retries: cfg.Webhooks.Retries,
		}, log)
	}

	var reg *metrics.Registry
	metricsPath := ""
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		metricsPath = cfg.Metrics.Path
	}

	h := hub.New(store, arch, notifier, reg, log)

	server, err := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		APIKey:         cfg.Server.APIKey,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		MetricsPath:    metricsPath,
	}, api.Dependencies{
		Hub:     h,
		Store:   store,
		Metrics: reg,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down RunHub server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func buildArchive(cfg *config.Config) (archive.Storage, error) {
	switch cfg.Archive.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Archive.Path)
	}
}
