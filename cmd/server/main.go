package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/loanrules/internal/api"
	"github.com/TimurManjosov/loanrules/internal/audit"
	"github.com/TimurManjosov/loanrules/internal/config"
	mydb "github.com/TimurManjosov/loanrules/internal/db"
	"github.com/TimurManjosov/loanrules/internal/logging"
	"github.com/TimurManjosov/loanrules/internal/snapshot"
	"github.com/TimurManjosov/loanrules/internal/store"
	"github.com/TimurManjosov/loanrules/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "dev")
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	telemetry.Init()

	if cfg.MigrateOnStart && cfg.StoreType == store.TypePostgres {
		if err := mydb.MigrateUp(cfg.DatabaseDSN, log); err != nil {
			return err
		}
	}

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("store", cfg.StoreType).Msg("store ready")

	auditSvc := audit.NewService(audit.NewLogSink(log), nil, 256, log)
	defer auditSvc.Close()

	cache := snapshot.NewCache(st, cfg.RuleCacheTTL, log)
	srvAPI := api.NewServer(api.Options{
		Store:          st,
		Cache:          cache,
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Logger:         log,
		Audit:          auditSvc,
	})

	g, gctx := errgroup.WithContext(ctx)

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srvAPI.Router(),
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      0, // rule streams are long-lived
		IdleTimeout:       60 * time.Second,
		// ends rule streams on shutdown
		BaseContext: func(net.Listener) context.Context { return gctx },
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           telemetry.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	for name, srv := range map[string]*http.Server{"api": apiSrv, "metrics": metricsSrv} {
		g.Go(func() error {
			log.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutCtx), metricsSrv.Shutdown(shutCtx))
	})

	return g.Wait()
}
