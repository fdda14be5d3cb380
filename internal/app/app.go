// Package app assembles the server from configuration: storage, the alert
// queue, the marketplace service and the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/lexhub/internal/admin"
	"github.com/sudo-init-do/lexhub/internal/alerts"
	"github.com/sudo-init-do/lexhub/internal/config"
	"github.com/sudo-init-do/lexhub/internal/currency"
	"github.com/sudo-init-do/lexhub/internal/db"
	"github.com/sudo-init-do/lexhub/internal/db/memstore"
	"github.com/sudo-init-do/lexhub/internal/discovery"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/marketplace"
	"github.com/sudo-init-do/lexhub/internal/metrics"
	"github.com/sudo-init-do/lexhub/internal/middleware"
	"github.com/sudo-init-do/lexhub/internal/shutdown"
	"github.com/sudo-init-do/lexhub/internal/validation"
)

// Store is everything the server reads and writes.
type Store interface {
	marketplace.Store
	alerts.Sink
	alerts.Inbox
	admin.Store
	Ping(ctx context.Context) error
}

type App struct {
	Echo    *echo.Echo
	Service *marketplace.Service
	Store   Store
	Metrics *metrics.Metrics

	cfg     config.Config
	log     *logging.Logger
	redis   *redis.Client
	cron    *cron.Cron
	closers []shutdown.Stoppable
}

// OpenStore connects the configured store. For Postgres it also applies the
// schema. The returned closer releases the pool.
func OpenStore(ctx context.Context, cfg config.Config, log *logging.Logger) (Store, shutdown.Stoppable, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), shutdown.Func(func(context.Context) error { return nil }), nil
	}

	pool, err := db.Open(ctx, cfg.DSN(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	store := db.NewStore(pool, db.WithLogger(log))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, shutdown.Func(func(context.Context) error {
		pool.Close()
		return nil
	}), nil
}

// New builds the application. Side effects go through asynq when REDIS_ADDR
// is set and are applied inline otherwise.
func New(ctx context.Context, cfg config.Config, log *logging.Logger) (*App, error) {
	store, closeStore, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store, Metrics: metrics.New(), cfg: cfg, log: log}

	money, err := currency.NewNormalizer(cfg.BaseCurrency, currency.DefaultTable(), log.With("component", "currency"))
	if err != nil {
		_ = closeStore.Shutdown(ctx)
		return nil, err
	}

	processor := alerts.NewProcessor(store, log.With("component", "alerts"))
	var dispatcher marketplace.Dispatcher = alerts.NewInline(processor)
	if cfg.RedisAddr != "" {
		rt, err := alerts.Start(cfg.RedisAddr, processor, log, a.Metrics)
		if err != nil {
			_ = closeStore.Shutdown(ctx)
			return nil, fmt.Errorf("start alert queue: %w", err)
		}
		dispatcher = rt.Dispatcher
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, shutdown.Func(func(context.Context) error {
			rt.Close()
			return a.redis.Close()
		}))
	} else {
		log.Info("REDIS_ADDR not set, applying side effects inline")
	}
	a.closers = append(a.closers, closeStore)

	a.Service = marketplace.NewService(store, money,
		marketplace.WithRanker(discovery.NewRanker(discovery.WithRadiusPolicy(cfg.RadiusPolicy))),
		marketplace.WithPlatformFee(cfg.PlatformFeeBps),
		marketplace.WithDispatcher(dispatcher),
		marketplace.WithMetrics(a.Metrics),
		marketplace.WithLogger(log.With("component", "marketplace")),
	)
	a.Echo = a.routes()
	return a, nil
}

func (a *App) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.Echo{}
	e.HTTPErrorHandler = middleware.ErrorHandler(a.log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", a.ready)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	limiter := echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(a.cfg.SearchRateLimit)))
	authed := e.Group("", middleware.JWT([]byte(a.cfg.JWTSecret)))

	marketplace.NewHandler(a.Service).Register(e.Group(""), authed, limiter)
	alerts.NewHandler(a.Store).Register(authed)
	admin.NewHandler(a.Store, a.Service, a.log.With("component", "admin")).
		Register(e.Group("/admin", middleware.JWT([]byte(a.cfg.JWTSecret)), middleware.AdminGuard))
	return e
}

func (a *App) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "queue unreachable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

// StartSweeper schedules the completion sweep on SWEEP_SCHEDULE.
func (a *App) StartSweeper() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(a.cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := a.Service.CompleteElapsed(ctx); err != nil {
			a.log.Error("completion sweep failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", a.cfg.SweepSchedule, err)
	}
	c.Start()
	a.cron = c
	a.log.Info("completion sweep scheduled", "schedule", a.cfg.SweepSchedule)
	return nil
}

// Run serves HTTP until the server is shut down.
func (a *App) Run() error {
	addr := ":" + a.cfg.Port
	a.log.Info("http server starting", "addr", addr)
	if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for a running sweep, then closes
// the queue and the store.
func (a *App) Shutdown(ctx context.Context) error {
	errs := []error{a.Echo.Shutdown(ctx)}
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	for _, c := range a.closers {
		errs = append(errs, c.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
