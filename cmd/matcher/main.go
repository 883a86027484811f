package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/app"
	"github.com/uniportal/internship-portal/internal/config"
	"github.com/uniportal/internship-portal/internal/logger"
	"github.com/uniportal/internship-portal/internal/matching"
)

func main() {
	configPath := flag.String("config", "", "path to portal.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting matching worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer backend.Close()

	rdb, err := app.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	nc, err := app.OpenNATS(cfg.NATS, "matcher", log)
	if err != nil {
		log.Fatal("failed to connect to nats", zap.Error(err))
	}
	if nc == nil && cfg.Matching.Interval <= 0 {
		log.Fatal("matcher has nothing to do: enable nats or set matching.interval")
	}

	svc := matching.NewService(app.MatchingDeps(backend, rdb, nc, cfg.Matching, log))
	worker := matching.NewWorker(svc, nc, cfg.Matching.RunTimeout, cfg.Matching.Interval, log)
	if err := worker.Start(); err != nil {
		log.Fatal("failed to start worker", zap.Error(err))
	}

	log.Info("matching worker running",
		zap.String("database", cfg.Database.Driver),
		zap.String("nats_url", cfg.NATS.URL),
		zap.Duration("interval", cfg.Matching.Interval),
	)

	<-ctx.Done()
	log.Info("received signal, shutting down")

	worker.Stop()
	if nc != nil {
		nc.Close()
	}
}
