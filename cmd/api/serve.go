package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/swaymx/sway-api/internal/catalog"
	"github.com/swaymx/sway-api/internal/config"
	"github.com/swaymx/sway-api/internal/events"
	"github.com/swaymx/sway-api/internal/httpx"
	kafkax "github.com/swaymx/sway-api/internal/kafka"
	"github.com/swaymx/sway-api/internal/logging"
	"github.com/swaymx/sway-api/internal/metrics"
	"github.com/swaymx/sway-api/internal/orders"
	"github.com/swaymx/sway-api/internal/postgres"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/redisx"
	"github.com/swaymx/sway-api/internal/sightings"
	"github.com/swaymx/sway-api/internal/stats"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/store/memstore"
	"github.com/swaymx/sway-api/internal/store/pgstore"
	"github.com/swaymx/sway-api/internal/users"
)

func serveCommand(configPath *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving (postgres only)")
	return cmd
}

func serve(parent context.Context, cfg config.Config, migrate bool) error {
	log := logging.New(cfg.LogLevel, nil)
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using the in-memory demo store; data is lost on exit")
		st = memstore.NewDemo()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
		st = pgstore.New(db)
	}

	// Redis; the API keeps serving without it
	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, caching and idempotency degraded", "addr", cfg.RedisAddr, "err", err)
	}

	// Kafka producer
	var pub events.Publisher = events.Nop{}
	var prod *kafkax.Producer
	if cfg.PublishEvents {
		prod = kafkax.NewProducer(cfg.Brokers(), cfg.ProducerBuffer, log)
		// flushed by Close once the HTTP server has stopped
		prod.Start(context.Background())
		pub = prod
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	verifier := principal.NewVerifier(cfg.JWTSecret)
	if !verifier.Enabled() {
		log.Warn("no jwt secret configured, every caller is a guest")
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Metrics:  m,
		Gatherer: reg,
		Verifier: verifier,
		Timeout:  cfg.RequestTimeout,
		Ping:     st.Ping,
		Sightings: &sightings.Service{
			Store:       st,
			Publisher:   pub,
			Metrics:     m,
			Log:         log,
			ServiceName: cfg.ServiceName,
			Location:    cfg.Location(),
		},
		Orders: &orders.Service{
			Store:       st,
			Cache:       redisx.NewOrderCache(rdb, cfg.StatusCacheTTL, cfg.IdempotencyTTL),
			Publisher:   pub,
			Metrics:     m,
			Log:         log,
			ServiceName: cfg.ServiceName,
		},
		Catalog:    catalog.New(st),
		Newsletter: &users.Newsletter{Store: st},
		Stats:      &stats.Service{Store: st, Redis: rdb, Log: log},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	return nil
}
