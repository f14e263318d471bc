package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/app"
	"github.com/benagdipa/fwpm-sub001/internal/auth"
	"github.com/benagdipa/fwpm-sub001/internal/dashboard"
	"github.com/benagdipa/fwpm-sub001/internal/observability"
	"github.com/benagdipa/fwpm-sub001/internal/platform/cache"
	"github.com/benagdipa/fwpm-sub001/internal/platform/db"
	"github.com/benagdipa/fwpm-sub001/internal/rbac"
	"github.com/benagdipa/fwpm-sub001/internal/roles"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/users"
	"github.com/benagdipa/fwpm-sub001/internal/view"
	"github.com/benagdipa/fwpm-sub001/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	if dbpool != nil {
		defer dbpool.Close()
		if err := db.Migrate(ctx, dbpool, shared.AuditSchema); err != nil {
			logger.Error("migrate audit schema", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Info("PG_DSN not set, audit records go to the log only")
	}

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "console_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	defer metrics.WatchSessions(sessionManager)()
	auditLogger := shared.NewAuditLogger(dbpool, logger)
	defer auditLogger.RecordSessionEvents(sessionManager)()
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout(),
		Logger:   logger,
		Observer: metrics,
	})
	upstream := shared.Upstream{Client: api, Sessions: sessionManager, Logger: logger}

	var notifier users.Notifier
	var inspector jobs.QueueInspector
	if cfg.NotifyEnabled {
		queueOpt := cache.QueueOpt(cfg.RedisAddr)
		jobClient, err := jobs.NewClient(queueOpt)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		notifier = jobs.NewUserNotifier(jobClient)

		queueInspector := asynq.NewInspector(queueOpt)
		defer func() {
			if err := queueInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		inspector = queueInspector
	}

	roleManager := roles.NewManager(roles.NewCatalog(roles.DefaultPermissions()))

	authHandler := auth.NewHandler(logger, auth.NewService(api.Auth()), upstream, templates, sessionManager, csrfManager)
	usersHandler := users.NewHandler(users.HandlerParams{
		Logger:    logger,
		Upstream:  upstream,
		Notifier:  notifier,
		Templates: templates,
		CSRF:      csrfManager,
		Audit:     auditLogger,
	})
	rolesHandler := roles.NewHandler(logger, roleManager, templates, csrfManager, auditLogger, usersHandler.CountUsersByRole)
	dashboardHandler := dashboard.NewHandler(logger, dashboard.NewService(logger), upstream, templates, csrfManager,
		func(r *http.Request) (int, error) {
			counts, err := usersHandler.CountUsersByRole(r)
			if err != nil {
				return 0, err
			}
			total := 0
			for _, n := range counts {
				total += n
			}
			return total, nil
		},
		func() int { return len(roleManager.List()) },
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		RolesHandler:     rolesHandler,
		UsersHandler:     usersHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		RBACMiddleware: rbac.Middleware{
			Admin:     rbac.AdminGuard(cfg.GuardBypassUsername),
			Templates: templates,
			CSRF:      csrfManager,
			Sessions:  sessionManager,
			Logger:    logger,
		},
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("api", cfg.APIBaseURL),
			slog.Duration("api_timeout", api.Timeout()),
		)
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
}
