package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/app"
	"github.com/uniportal/internship-portal/internal/config"
	"github.com/uniportal/internship-portal/internal/httpapi"
	"github.com/uniportal/internship-portal/internal/logger"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
	"github.com/uniportal/internship-portal/internal/ratelimit"
	"github.com/uniportal/internship-portal/internal/ws"
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

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	rdb, err := app.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	nc, err := app.OpenNATS(cfg.NATS, "api", log)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}

	svc := matching.NewService(app.MatchingDeps(backend, rdb, nc, cfg.Matching, log))
	profiles := profile.NewService(backend.Store, log)
	profiles.OnStudentChanged = svc.InvalidateStudent

	hub := ws.NewServer(ws.ServerConfig{
		MaxConnections: cfg.Push.MaxConnections,
		WriteTimeout:   cfg.Push.WriteTimeout,
		Heartbeat: ws.HeartbeatConfig{
			Interval: cfg.Push.Heartbeat,
			Timeout:  ws.DefaultHeartbeatConfig().Timeout,
		},
	}, log)
	defer hub.Shutdown()

	// Suggestions from every matching run, including the matcher's, reach
	// connected students through the hub.
	if nc != nil {
		if err := nc.SubscribeAllSuggested(hub.HandleSuggested); err != nil {
			return err
		}
	}

	opts := httpapi.Options{
		Matching:       svc,
		Profiles:       profiles,
		Push:           hub,
		Logger:         log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.Matching.RequestTimeout,
	}
	if rdb != nil {
		opts.Limiter = ratelimit.NewLimiter(rdb, log)
	}
	api := httpapi.New(opts)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("database", cfg.Database.Driver),
			zap.Bool("redis", rdb != nil),
			zap.Bool("nats", nc != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
