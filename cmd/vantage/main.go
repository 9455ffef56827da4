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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/vantage-admin/vantage-admin/internal/app"
	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/auth"
	"github.com/vantage-admin/vantage-admin/internal/observability"
	"github.com/vantage-admin/vantage-admin/internal/pages"
	"github.com/vantage-admin/vantage-admin/internal/permissions"
	"github.com/vantage-admin/vantage-admin/internal/platform/cache"
	"github.com/vantage-admin/vantage-admin/internal/platform/db"
	"github.com/vantage-admin/vantage-admin/internal/rbac"
	"github.com/vantage-admin/vantage-admin/internal/roles"
	"github.com/vantage-admin/vantage-admin/internal/shared"
	"github.com/vantage-admin/vantage-admin/internal/tickets"
	"github.com/vantage-admin/vantage-admin/internal/users"
	"github.com/vantage-admin/vantage-admin/internal/view"
	"github.com/vantage-admin/vantage-admin/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "vantage_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(pool)

	ruleStore := rbac.NewRuleStore(pool)
	accessService := rbac.NewAccessService(ruleStore)
	accessHandler := rbac.NewAccessHandler(logger, accessService)
	rbacMiddleware := rbac.Middleware{Logger: logger}
	navigation := rbac.NewNavigation(accessService, logger, nil)
	renderer := view.NewRenderer(templates, csrfManager, navigation, logger)

	gate := rbac.NewGate(accessService, logger, rbac.GateConfig{
		LoginPath:        "/auth/login",
		LandingPath:      "/",
		UnauthorizedPath: "/unauthorized",
		PublicPrefixes:   []string{"/auth/", "/static/", "/healthz", "/metrics", "/api/access/"},
		OnDeny:           metrics.CountDenial,
	})

	enqueuer := jobs.NewEnqueuer(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Warn("enqueuer close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(auth.ServiceConfig{
		Repo:      authRepo,
		Redis:     redisClient,
		Mailer:    enqueuer,
		Recorder:  recorder,
		Logger:    logger,
		SuperRole: cfg.SuperRole,
		BaseURL:   cfg.AppBaseURL,
	})
	authHandler := auth.NewHandler(logger, authService, renderer, sessionManager)

	assignmentStore := rbac.NewAssignmentStore(pool)
	assignmentService := rbac.NewAssignmentService(assignmentStore, recorder, logger)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, recorder, logger, cfg.SuperRole)

	permissionsRepo := permissions.NewRepository(pool)
	permissionsService := permissions.NewService(permissionsRepo, recorder, logger)
	permissionsHandler := permissions.NewHandler(logger, permissionsService, renderer, rbacMiddleware)

	rolesHandler := roles.NewHandler(logger, rolesService, assignmentService, permissionsRepo, renderer, rbacMiddleware)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, recorder, logger)
	usersHandler := users.NewHandler(logger, usersService, assignmentService, rolesRepo, renderer, rbacMiddleware)

	pagesRepo := pages.NewRepository(pool)
	pagesService := pages.NewService(pagesRepo, recorder, logger)
	pagesHandler := pages.NewHandler(logger, pagesService, assignmentService, rolesRepo, renderer, rbacMiddleware)

	ticketsRepo := tickets.NewRepository(pool)
	ticketsService := tickets.NewService(ticketsRepo, recorder, logger)
	ticketsHandler := tickets.NewHandler(logger, ticketsService, renderer, rbacMiddleware)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, renderer, rbacMiddleware.RequireAny("audit.view"))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Renderer:           renderer,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Gate:               gate,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		PagesHandler:       pagesHandler,
		TicketsHandler:     ticketsHandler,
		AuditHandler:       auditHandler,
		AccessHandler:      accessHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
