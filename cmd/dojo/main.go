package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dojo-planner/dojo/internal/app"
	"github.com/dojo-planner/dojo/internal/dashboard"
	dashboardhttp "github.com/dojo-planner/dojo/internal/dashboard/http"
	"github.com/dojo-planner/dojo/internal/dojo"
	"github.com/dojo-planner/dojo/internal/observability"
	"github.com/dojo-planner/dojo/internal/platform/cache"
	"github.com/dojo-planner/dojo/internal/platform/db"
	"github.com/dojo-planner/dojo/internal/rpc"
	"github.com/dojo-planner/dojo/internal/shared"
	"github.com/dojo-planner/dojo/internal/view"
	"github.com/dojo-planner/dojo/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := dojo.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	rpcMetrics := rpc.NewMetrics(metrics.Registerer())

	sessionManager := shared.NewSessionManager(redisClient, "dojo_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	money, err := view.NewMoney(cfg.DojoCurrency, cfg.DojoLocale)
	if err != nil {
		logger.Error("configure currency", slog.Any("error", err))
		os.Exit(1)
	}
	templates, err := view.NewEngine(view.WithMoney(money))
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	loc := cfg.Location()
	dojoCache := dojo.NewCache(redisClient, cfg.DojoCacheTTL)
	completions := shared.NewIdempotencyStore(dbpool)
	dojoService := dojo.NewService(dojo.NewPGRepository(dbpool), dojoCache, completions, loc)

	if err := dojoCache.ListenForInvalidation(ctx, dojo.BumpChannel); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	registry := rpc.NewRegistry()
	dojo.RegisterMethods(registry, dojoService)
	rpcHandler := rpc.NewHandler(logger, registry, rpc.NewTokenAuth(cfg.RPCAPIKey, cfg.RPCAPISecretHash), rpcMetrics)

	caller, err := dashboardCaller(cfg, registry, rpcMetrics)
	if err != nil {
		logger.Error("configure rpc caller", slog.Any("error", err))
		os.Exit(1)
	}

	layout := dashboard.LayoutFrom(templates.Defined)
	pageCfg := dashboard.Config{
		RefreshInterval: cfg.DashboardRefreshInterval,
		CallTimeout:     cfg.DashboardCallTimeout,
		Growth:          dashboard.GrowthSource(strings.ToLower(cfg.DashboardMemberGrowth)),
		Location:        loc,
	}
	pageLogger := logger.With(slog.String("component", "dashboard"))
	pages := dashboardhttp.NewPages(ctx, pageLogger, func(ctx context.Context) *dashboard.Controller {
		return dashboard.New(ctx, caller, layout, pageCfg, dashboard.WithLogger(pageLogger))
	}, cfg.DashboardPageIdleTTL)
	go pages.Run(ctx, janitorInterval(cfg.DashboardPageIdleTTL))

	dashboardHandler := dashboardhttp.NewHandler(logger, pages, templates, csrfManager, cfg.DashboardRefreshInterval)

	inspector := asynq.NewInspector(jobs.RedisOpt(redisClient.Options()))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		DashboardHandler: dashboardHandler,
		RPCHandler:       rpcHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Health: func(r *http.Request) error {
			if err := dbpool.Ping(r.Context()); err != nil {
				return err
			}
			return redisClient.Ping(r.Context()).Err()
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	pages.Shutdown()
}

// dashboardCaller dispatches in-process unless a remote host is configured.
func dashboardCaller(cfg *app.Config, registry *rpc.Registry, metrics *rpc.Metrics) (rpc.Caller, error) {
	if cfg.RPCBaseURL == "" {
		return rpc.NewLocal(registry, metrics), nil
	}
	return rpc.NewClient(cfg.RPCBaseURL,
		rpc.WithToken(cfg.RPCAPIKey, cfg.RPCAPISecret),
		rpc.WithMetrics(metrics),
	)
}

func janitorInterval(idle time.Duration) time.Duration {
	if idle <= 0 {
		return time.Minute
	}
	if half := idle / 2; half > time.Minute {
		return half
	}
	return time.Minute
}
