package main

import (
	"database/sql"
	"fmt"

	"github.com/KretovDmitry/ordermart/internal/auth"
	"github.com/KretovDmitry/ordermart/internal/config"
	"github.com/KretovDmitry/ordermart/internal/orders"
	"github.com/KretovDmitry/ordermart/internal/web"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// env holds the services a command works with.
type env struct {
	db     *sql.DB
	logger logger.Logger
	auth   *auth.Service
	orders *orders.Service
}

func (e *env) Close() error {
	_ = e.logger.Sync()
	return e.db.Close()
}

// loadConfig reads the config file named by the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if dsn := c.String("dsn"); dsn != "" {
		cfg.DSN = dsn
	}

	return cfg, nil
}

// newLogger reports warnings and errors to stderr so that command
// output stays clean.
func newLogger() (logger.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	zc.Encoding = "console"

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger.NewWithZap(l), nil
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open the database: %w", err)
	}

	if err = db.PingContext(c.Context); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	e, err := newEnv(db, log, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return e, nil
}

func newEnv(db *sql.DB, log logger.Logger, cfg *config.Config) (*env, error) {
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	authRepo, err := auth.NewRepository(db, trmsql.DefaultCtxGetter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth repository: %w", err)
	}

	authService, err := auth.NewService(authRepo, trManager, renderer, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth service: %w", err)
	}

	ordersRepo, err := orders.NewRepository(db, trmsql.DefaultCtxGetter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init orders repository: %w", err)
	}

	ordersService, err := orders.NewService(ordersRepo, authRepo, trManager, renderer, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init orders service: %w", err)
	}

	return &env{db: db, logger: log, auth: authService, orders: ordersService}, nil
}

// withEnv opens the services for the duration of action.
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()

		return action(c, e)
	}
}
