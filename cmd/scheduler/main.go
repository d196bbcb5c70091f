package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jbbskl/finalsoftware/internal/config"
	"github.com/jbbskl/finalsoftware/internal/core"
	"github.com/jbbskl/finalsoftware/internal/db"
	"github.com/jbbskl/finalsoftware/internal/dispatch"
	"github.com/jbbskl/finalsoftware/internal/executor"
	"github.com/jbbskl/finalsoftware/internal/logging"
	"github.com/jbbskl/finalsoftware/internal/metrics"
	"github.com/jbbskl/finalsoftware/internal/timerule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("scheduler"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool)

	rules, err := timerule.New(cfg.AppTimezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid application time zone")
	}

	exec, err := executor.NewRedis(executor.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.RedisStream,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer exec.Close()

	services := core.NewServices(pool, rules)
	scanner := dispatch.NewScanner(services, exec, logger,
		prometheus.DefaultRegisterer, cfg.DispatchWindow)

	c := cron.New()
	_, err = c.AddFunc(fmt.Sprintf("@every %s", cfg.ScanInterval), func() {
		if err := scanner.Scan(ctx); err != nil {
			logger.Error().Err(err).Msg("scan tick failed")
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule scan job")
	}

	metricsServer := metrics.NewServer(cfg.MetricsListenAddr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Dur("interval", cfg.ScanInterval).
			Dur("window", cfg.DispatchWindow).
			Str("tz", cfg.AppTimezone).
			Msg("starting dispatch scanner")
		c.Start()
		<-ctx.Done()
		cronCtx := c.Stop()
		// Let an in-flight tick finish before tearing the process down.
		select {
		case <-cronCtx.Done():
		case <-time.After(30 * time.Second):
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler exited with error")
	}
	logger.Info().Msg("scheduler stopped")
}
