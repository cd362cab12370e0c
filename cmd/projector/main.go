package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swaymx/sway-api/internal/config"
	"github.com/swaymx/sway-api/internal/events"
	kafkax "github.com/swaymx/sway-api/internal/kafka"
	"github.com/swaymx/sway-api/internal/logging"
	"github.com/swaymx/sway-api/internal/redisx"
	"github.com/swaymx/sway-api/internal/stats"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.New("error", nil).Error("config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	proj := stats.NewProjector(rdb, log, cfg.ServiceName+"-projector")

	// Consumer
	cons := kafkax.NewConsumer(cfg.Brokers(), cfg.KafkaGroup, events.Topics, cfg.KafkaWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("projector started", "group", cfg.KafkaGroup, "topics", events.Topics, "workers", cfg.KafkaWorkers)
		if err := cons.Start(ctx, proj.Handle); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down projector")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("consumer did not stop in time")
	}
}
