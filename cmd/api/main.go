package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hookrelay/internal/api"
	"hookrelay/internal/buildinfo"
	"hookrelay/internal/config"
	"hookrelay/internal/events"
	"hookrelay/internal/logging"
	"hookrelay/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		log.Error("failed to init server", "err", err)
		os.Exit(1)
	}

	// Event bus intake
	var consumer *events.Consumer
	if cfg.NATSURL != "" {
		consumer, err = events.NewConsumer(cfg.NATSURL, cfg.NATSSubject, srvDeps.Dispatcher, log)
		if err == nil {
			err = consumer.Start()
		}
		if err != nil {
			log.Error("nats consumer failed", "err", err)
			_ = srvDeps.Close()
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("API listening", "addr", srv.Addr, "version", buildinfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if consumer != nil {
		if err := consumer.Close(shutdownCtx); err != nil {
			log.Warn("nats drain", "err", err)
		}
	}
	if err := srvDeps.Close(); err != nil {
		log.Warn("close", "err", err)
	}
	log.Info("shutdown complete")
}
