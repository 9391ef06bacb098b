package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaybot/internal/commlog"
	"relaybot/internal/config"
	"relaybot/internal/dispatcher"
	"relaybot/internal/gateway"
	"relaybot/internal/hours"
	"relaybot/internal/idle"
	"relaybot/internal/metrics"
	"relaybot/internal/order"
	"relaybot/internal/ratelimit"
	"relaybot/internal/relay"
	"relaybot/internal/report"
	"relaybot/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	logger := newLogger(cmd)

	path := config.Path(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to load config")
		return err
	}

	sched, err := cfg.Schedule()
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Hours.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Hours.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	limiter := ratelimit.New(rdb, cfg.RateLimit.Limit, cfg.RateWindow(), &logger)

	commLog, err := commlog.Open(cfg.Commlog.Driver, cfg.Commlog.Path)
	if err != nil {
		logger.Error().Err(err).Msg("open communication log error")
		return err
	}
	defer commLog.Close()

	tg, err := gateway.NewTelegram(cfg.Telegram.BotToken, gateway.Options{
		Timeout:       cfg.GatewayTimeout(),
		RatePerSecond: cfg.Gateway.RatePerSecond,
		Burst:         cfg.Gateway.Burst,
		Debug:         cfg.Telegram.Debug,
	})
	if err != nil {
		logger.Error().Err(err).Msg("create telegram gateway error")
		return err
	}
	logger.Info().Str("username", tg.Username()).Msg("authorized on telegram")

	if cfg.Telegram.WebhookURL != "" {
		if err := tg.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
			logger.Error().Err(err).Msg("register webhook error")
			return err
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("webhook registered")
	}

	store := session.NewStore(cfg.Session.Shards)
	policy := hours.NewPolicy(sched)
	reporter := report.New(commLog, loc)

	d := dispatcher.New(dispatcher.Deps{
		Store:    store,
		Orders:   order.New(store, cfg.Telegram.AdminID),
		Relay:    relay.New(store, cfg.Telegram.AdminID, policy),
		Gateway:  tg,
		Log:      commLog,
		Limiter:  limiter,
		Reporter: reporter,
		AdminID:  cfg.Telegram.AdminID,
	})

	if err := config.Watch(ctx, path, 30*time.Second, logger, func(next *config.Config) {
		s, err := next.Schedule()
		if err != nil {
			return
		}
		policy.Set(s)
		logger.Info().Msg("working hours reloaded")
	}); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	if cfg.Report.Cron != "" {
		job := &report.Job{
			Reporter: reporter,
			Gateway:  tg,
			AdminID:  cfg.Telegram.AdminID,
			Window:   24 * time.Hour,
			Logger:   logger.With().Str("component", "report").Logger(),
		}
		c, err := report.Schedule(cfg.Report.Cron, loc, job)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	if cfg.Idle.Enabled {
		sim := idle.New(idle.Config{
			Min:         cfg.IdleMin(),
			Max:         cfg.IdleMax(),
			JoinTimeout: cfg.IdleJoinTimeout(),
		}, logger)
		sim.Start(ctx)
		defer func() {
			if !sim.Stop() {
				logger.Warn().Msg("idle simulator did not stop in time")
			}
		}()
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register(func() float64 { return float64(store.Len()) })
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	// Handler runs are cancelled only after the pool drains.
	handleCtx, cancelHandlers := context.WithCancel(context.Background())
	defer cancelHandlers()

	pool := dispatcher.NewPool(cfg.Dispatcher.Workers, cfg.Dispatcher.QueueSize, cfg.AcquireTimeout())
	srv := dispatcher.NewServer(handleCtx, dispatcher.ServerConfig{
		WebhookPath:   cfg.Telegram.WebhookPath,
		Secret:        cfg.Telegram.WebhookSecret,
		HandleTimeout: 30 * time.Second,
		Ready:         limiter.Ping,
	}, d, pool, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Server.Listen).Str("path", cfg.Telegram.WebhookPath).Msg("relay bot started")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("webhook server error")
			return err
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("webhook server shutdown")
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("worker pool did not drain")
	}
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
