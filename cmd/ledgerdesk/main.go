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

	"github.com/ledgerdesk/ledgerdesk/internal/app"
	"github.com/ledgerdesk/ledgerdesk/internal/auth"
	"github.com/ledgerdesk/ledgerdesk/internal/clients"
	"github.com/ledgerdesk/ledgerdesk/internal/dashboard"
	"github.com/ledgerdesk/ledgerdesk/internal/expenses"
	"github.com/ledgerdesk/ledgerdesk/internal/invoices"
	"github.com/ledgerdesk/ledgerdesk/internal/numbering"
	"github.com/ledgerdesk/ledgerdesk/internal/observability"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/cache"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/db"
	"github.com/ledgerdesk/ledgerdesk/internal/portal"
	"github.com/ledgerdesk/ledgerdesk/internal/products"
	"github.com/ledgerdesk/ledgerdesk/internal/quotes"
	"github.com/ledgerdesk/ledgerdesk/internal/reports"
	"github.com/ledgerdesk/ledgerdesk/internal/settings"
	"github.com/ledgerdesk/ledgerdesk/internal/stock"
	"github.com/ledgerdesk/ledgerdesk/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL, logger)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokens, auth.NewDenylist(redisClient), logger)
	authMiddleware := auth.NewMiddleware(authService, cfg.AuthCookieName, logger)
	authHandler := auth.NewHandler(logger, authService, authMiddleware, auth.CookieOptions{
		Name:   cfg.AuthCookieName,
		Secure: cfg.IsProduction(),
	})

	settingsService := settings.NewService(settings.NewRepository(pool))
	clientsService := clients.NewService(clients.NewRepository(pool), dashboardCache)
	productsService := products.NewService(products.NewRepository(pool))
	expensesService := expenses.NewService(expenses.NewRepository(pool), dashboardCache)
	numberService := numbering.NewService(numbering.NewRepository(pool))
	stockService := stock.NewService(stock.NewRepository(pool), logger)

	invoiceService := invoices.NewService(invoices.NewRepository(pool), invoices.Ports{
		Numbers:  numberService,
		Stock:    stockService,
		Settings: settingsService,
		Clients:  clientsService,
		Mail:     jobClient,
		Notifier: dashboardCache,
	}, invoices.ServiceConfig{PublicBaseURL: cfg.PublicBaseURL}, logger)

	quoteService := quotes.NewService(quotes.NewRepository(pool), quotes.Ports{
		Numbers:  numberService,
		Settings: settingsService,
		Clients:  clientsService,
		Invoices: invoiceService,
		Mail:     jobClient,
	}, logger, nil)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		AuthMiddleware:   authMiddleware,
		AuthHandler:      authHandler,
		ClientsHandler:   clients.NewHandler(logger, clientsService),
		ProductsHandler:  products.NewHandler(logger, productsService),
		InvoicesHandler:  invoices.NewHandler(logger, invoiceService),
		QuotesHandler:    quotes.NewHandler(logger, quoteService),
		ExpensesHandler:  expenses.NewHandler(logger, expensesService),
		SettingsHandler:  settings.NewHandler(logger, settingsService),
		DashboardHandler: dashboard.NewHandler(logger, dashboard.NewService(dashboard.NewRepository(pool), dashboardCache)),
		ReportsHandler:   reports.NewHandler(logger, reports.NewService(reports.NewRepository(pool))),
		PortalHandler:    portal.NewHandler(logger, portal.NewService(invoiceService, clientsService, settingsService)),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
