package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wa-blaster/config"
	"wa-blaster/database"
	"wa-blaster/internal/automation"
	"wa-blaster/internal/browser"
	"wa-blaster/internal/handler"
	"wa-blaster/internal/helper"
	"wa-blaster/internal/logx"
	"wa-blaster/internal/model"
	"wa-blaster/internal/service"
	"wa-blaster/internal/worker"
	"wa-blaster/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {
	// Load .env (abaikan error kalau file tidak ada, misal di production)
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// riwayat blast opsional, tanpa DB cukup di memori
	var store *model.BlastLogStore
	if cfg.DatabaseURL != "" {
		if err := database.InitAppDB(ctx, cfg.DatabaseURL, logx.Component(log, "database")); err != nil {
			log.Fatal().Err(err).Msg("failed to open blast history database")
		}
		defer database.AppDB.Close()

		if err := helper.InitBlastSchema(ctx, database.AppDB); err != nil {
			log.Fatal().Err(err).Msg("failed to create blast history schema")
		}
		store = model.NewBlastLogStore(database.AppDB, database.AppDriver)
	} else {
		log.Info().Msg("BLAST_DATABASE_URL is not set, blast history is kept in memory only")
	}

	// Inisialisasi WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := ws.NewHub(logx.Component(log, "ws"))
	go hub.Run(hubCtx)

	policy, err := service.ParseSelectionPolicy(cfg.Blast.SelectionPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid BLAST_SELECTION_POLICY")
	}

	browserLog := logx.Component(log, "browser")
	newDriver := func(headless bool) automation.Driver {
		bc := browser.ConfigFrom(cfg.Browser)
		bc.Headless = headless
		return browser.NewDriver(bc, browserLog)
	}

	pool := service.NewSessionPool(newDriver(cfg.Browser.Headless), service.PoolOptions{
		SettleDelay: cfg.Blast.SessionSettle,
		Policy:      policy,
		Publisher:   hub,
		Log:         logx.Component(log, "pool"),
	})

	blastOpts := service.BlasterOptionsFrom(cfg.Blast)
	blastOpts.Log = logx.Component(log, "blaster")
	blaster := service.NewBlaster(pool, service.NewThrottler(service.ThrottleOptionsFrom(cfg.Throttle)), blastOpts)

	jobOpts := worker.JobManagerOptions{
		Publisher: hub,
		Log:       logx.Component(log, "jobs"),
	}
	if store != nil {
		jobOpts.Recorder = store
	}
	if hook := service.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, logx.Component(log, "webhook")); hook.Enabled() {
		jobOpts.Notifier = hook
	}
	jobs := worker.NewJobManager(blaster, jobOpts)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CorsAllowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			"X-API-Key",
		},
	}))

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: cfg.RateWindow,
			},
		),
	}))

	e.HTTPErrorHandler = handler.HTTPErrorHandler

	handler.RegisterRoutes(e, handler.Deps{
		Config:    cfg,
		Campaign:  service.NewCampaign(),
		Pool:      pool,
		Jobs:      jobs,
		Store:     store,
		Hub:       hub,
		NewDriver: newDriver,
		Log:       logx.Component(log, "http"),
	})

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("stage", cfg.Stage).
			Str("user_path", cfg.UserPath).
			Str("policy", string(policy)).
			Bool("throttle", cfg.Throttle.Enabled).
			Bool("history", store != nil).
			Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	jobs.Stop()
	if err := pool.Close(); err != nil {
		log.Warn().Err(err).Msg("closing browser sessions")
	}
	stopHub()
}
