package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callflow-platform/internal/admin"
	"callflow-platform/internal/audit"
	"callflow-platform/internal/auth"
	"callflow-platform/internal/callflow"
	"callflow-platform/internal/campaign"
	"callflow-platform/internal/config"
	"callflow-platform/internal/gateway"
	"callflow-platform/internal/httpapi"
	"callflow-platform/internal/political"
	"callflow-platform/internal/ratelimit"
	"callflow-platform/internal/reporting"
	"callflow-platform/internal/schedule"
	"callflow-platform/internal/session"
	"callflow-platform/internal/target"
	"callflow-platform/pkg/logger"
	"callflow-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Persistence
	campaignRepo := campaign.NewPostgresRepo(db)
	targetRepo := target.NewPostgresRepo(db)
	sessionRepo := session.NewPostgresRepo(db)
	scheduleRepo := schedule.NewPostgresRepo(db)
	auditRepo := audit.NewPostgresRepo(db)

	// Services
	auditSvc := audit.NewService(auditRepo)
	sessionSvc := session.NewService(sessionRepo, cfg.Calls.PhoneHashSalt, cfg.Calls.LogPhoneNumbers)
	scheduleSvc := schedule.NewService(scheduleRepo, auditSvc, log)
	resolver := target.NewResolver(targetRepo, target.NewRedisSource(rdb), log)
	registry := political.Registry{
		"US": political.NewUSProvider(political.NewRedisUSStore(rdb)),
	}
	blocklist := admin.NewRedisBlocklist(rdb)
	limiter := ratelimit.NewRedisLimiter(rdb, "ratelimit:calls:", cfg.Calls.RateLimit, cfg.Calls.RateLimitWindow)
	provider := gateway.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, log)

	flow := callflow.NewFlow(callflow.Config{
		BaseURL:            cfg.App.PublicBaseURL,
		InstalledOrg:       cfg.App.InstalledOrg,
		DialTimeoutSeconds: int(cfg.Twilio.DialTimeout.Seconds()),
		TimeLimitSeconds:   int(cfg.Twilio.BridgeTimeLimit.Seconds()),
	}, callflow.FlowDeps{
		Campaigns: campaignRepo,
		Targets:   resolver,
		Sessions:  sessionSvc,
		Schedules: scheduleSvc,
		Provider:  provider,
		Blocklist: blocklist,
		Limiter:   limiter,
		Registry:  registry,
		Log:       log,
	})

	handlers := httpapi.Handlers{
		Auth:      authManager,
		Campaigns: campaignRepo,
		Blocklist: blocklist,
		Schedules: scheduleRepo,
		Reports:   reporting.NewService(sessionRepo),
		Audit:     auditSvc,
		Sessions:  sessionSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, flow, handlers, auth.RequireAccessToken(authManager), log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
