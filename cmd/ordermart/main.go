package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KretovDmitry/ordermart/internal/auth"
	"github.com/KretovDmitry/ordermart/internal/config"
	"github.com/KretovDmitry/ordermart/internal/orders"
	"github.com/KretovDmitry/ordermart/internal/web"
	"github.com/KretovDmitry/ordermart/migrations"
	"github.com/KretovDmitry/ordermart/pkg/accesslog"
	"github.com/KretovDmitry/ordermart/pkg/limiter"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	"github.com/KretovDmitry/ordermart/pkg/metrics"
	"github.com/KretovDmitry/ordermart/pkg/unzip"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nanmu42/gzip"
	sqldblogger "github.com/simukti/sqldb-logger"
	"golang.org/x/sync/errgroup"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

// Idle clients are forgotten by the API rate limiter after this long.
const limiterEviction = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context, cancelled by a termination signal.
	serverCtx, serverStopCtx := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(logger.Options{
		Level:      cfg.Logger.Level,
		Path:       cfg.Logger.Path,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	}).With(serverCtx, "version", Version)
	defer func() { _ = logger.Sync() }()

	// Bring the schema up to date before serving.
	if err := migrations.Up(cfg.DSN); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	db := openDB(cfg.DSN, logger)

	// Close connection.
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error(err)
		}
	}()

	// Check connectivity and DSN correctness.
	if err := db.PingContext(serverCtx); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	// Init repository for auth service.
	authRepo, err := auth.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init auth repository: %w", err)
	}

	// Init auth service.
	authService, err := auth.NewService(authRepo, trManager, renderer, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}

	// Init repository for orders service.
	ordersRepo, err := orders.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init orders repository: %w", err)
	}

	// Init orders service.
	ordersService, err := orders.NewService(ordersRepo, authRepo, trManager, renderer, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init orders service: %w", err)
	}

	rateLimiter := limiter.New(cfg.RateLimit.Interval, cfg.RateLimit.Burst)
	httpMetrics := metrics.New("ordermart")

	// Create root router.
	router := initRootRouter(logger, httpMetrics)
	router.Handle("/metrics", httpMetrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(authService.Middleware)

		auth.HandlerWithOptions(authService, auth.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: auth.ErrorHandlerFunc,
		})

		orders.HandlerWithOptions(ordersService, orders.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: orders.ErrorHandlerFunc,
			APIMiddlewares: []func(http.Handler) http.Handler{
				rateLimiter.Middleware,
				authService.BasicAuth,
			},
		})
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	g, gCtx := errgroup.WithContext(serverCtx)

	g.Go(func() error {
		rateLimiter.Run(gCtx, limiterEviction)
		return nil
	})

	// Start the HTTP server.
	g.Go(func() error {
		logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown.
	g.Go(func() error {
		<-gCtx.Done()

		logger.With(context.Background(), "cause", context.Cause(gCtx)).
			Infof("Shutting down server with %s timeout", cfg.HTTPServer.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := hs.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openDB opens a pool on the pgx driver that logs every query.
func openDB(dsn string, logger logger.Logger) *sql.DB {
	return sqldblogger.OpenDriver(dsn, stdlib.GetDefaultDriver(), logger,
		sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug))
}

func initRootRouter(logger logger.Logger, m *metrics.Metrics) *chi.Mux {
	router := chi.NewRouter()
	// Rate limit keys come from the connection, not from forwarded headers.
	router.Use(limiter.Peer)
	router.Use(middleware.RealIP)
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(m.Middleware)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}
