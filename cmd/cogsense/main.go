package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cogsense/internal/alerts"
	"cogsense/internal/api"
	"cogsense/internal/config"
	"cogsense/internal/ingest"
	"cogsense/internal/logging"
	"cogsense/internal/metrics"
	"cogsense/internal/nudge"
	"cogsense/internal/publish"
	"cogsense/internal/session"
	"cogsense/internal/storage"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to yaml/json config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("cogsense", version)
		return
	}

	var cfgManager *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
		cfgManager = m
	} else {
		cfgManager = config.NewStaticManager(nil)
	}
	cfg := cfgManager.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting cogsense", "version", version, "config", cfgManager.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsStore := metrics.NewStore(cfg.Metrics.StoreLimit)
	nudgeStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	policy := nudge.NewPolicy(cfg.Nudge)

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init error", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		cancelInit()
		if err != nil {
			logger.Error("storage schema error", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	publisher := publish.NewPublisher(cfg.Publish)
	if publisher != nil {
		pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
		if err := publisher.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, publishing will retry", "err", err)
		}
		cancelPing()
		defer publisher.Close()
		logger.Info("realtime publish enabled", "addr", cfg.Publish.Addr)
	}

	manager := session.NewManager(cfg, logger, metricsStore, nudgeStore, store, publisher, policy)

	samples := make(chan ingest.Envelope, cfg.Ingest.ChannelBuffer)
	manager.Start(ctx, samples)

	ingest.StartREST(ctx, cfgManager, samples, logger)
	ingest.StartTCPStream(ctx, cfgManager, samples, logger)
	ingest.StartWebSocket(ctx, cfgManager, samples, logger)
	ingest.StartMQTT(ctx, cfgManager, samples, logger)
	ingest.StartKafka(ctx, cfgManager, samples, logger)

	api.Start(ctx, cfgManager, metricsStore, nudgeStore, manager, logger, version)

	if cfgManager.Path() != "" {
		go cfgManager.Watch(3*time.Second,
			func(next *config.Config) {
				logger.Info("config reloaded", "path", cfgManager.Path())
				manager.UpdateConfig(next)
			},
			func(err error) {
				logger.Warn("config reload error", "err", err)
			},
			ctx.Done(),
		)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())
	cancel()

	// Give the manager a moment to flush session summaries.
	time.Sleep(500 * time.Millisecond)
}
