package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/activitysink"
	"github.com/goliatone/go-accounts/cmd/accountsd/config"
	"github.com/goliatone/go-accounts/notify"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	db     *bun.DB
	repo   accounts.RepositoryManager
	redis  *redis.Client
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("accounts:config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if app.Config().App.Debug {
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.db.Close()

	if err := WithSuperAdmin(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	addr := app.Config().App.Addr
	if addr == "" {
		addr = ":8572"
	}
	go func() {
		app.GetLogger("accounts:cmd").Info("listening", "addr", addr)
		if err := app.srv.Serve(addr); err != nil {
			app.GetLogger("accounts:cmd").Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("accounts:cmd").Error("shutdown", "error", err)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	var db *bun.DB
	switch pcfg.Driver {
	case "postgres":
		sqldb, err := sql.Open("pgx", pcfg.DSN)
		if err != nil {
			return fmt.Errorf("failed to open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, pcfg.DSN)
		if err != nil {
			return fmt.Errorf("failed to open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if pcfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	pingCtx, cancel := context.WithTimeout(ctx, pcfg.GetPingTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := accounts.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	app.db = db
	app.repo = accounts.NewRepositoryManager(db)
	return app.repo.Validate()
}

func WithSuperAdmin(ctx context.Context, app *App) error {
	seed := app.Config().Admin
	if seed.Email == "" {
		return nil
	}

	account, created, err := accounts.ProvisionSuperAdmin(ctx, app.repo, nil, accounts.SuperAdminSeed{
		Email:    seed.Email,
		Password: seed.Password,
		Name:     seed.Name,
		Phone:    seed.Phone,
	})
	if err != nil {
		return err
	}

	if created {
		app.GetLogger("accounts:cmd").Info("super admin provisioned", "id", account.ID, "email", account.Email)
	}
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.Config()

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           cfg.App.Name,
			UnescapePath:      true,
			EnablePrintRoutes: cfg.App.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("accounts:router"))

	accountsCfg := cfg.GetAccounts()
	handlerOpts := []accounts.HandlerOption{
		accounts.WithHandlerConfig(accountsCfg),
		accounts.WithHandlerLogger(app.GetLogger("accounts:commands")),
		accounts.WithHandlerNotifier(newNotifier(app)),
	}

	if sink := newActivitySink(ctx, app); sink != nil {
		handlerOpts = append(handlerOpts, accounts.WithHandlerActivitySink(sink))
	}

	accounts.RegisterAccountRoutes(srv.Router(),
		accounts.WithControllerRepository(app.repo),
		accounts.WithControllerConfig(accountsCfg),
		accounts.WithControllerLogger(app.GetLogger("accounts:http")),
		accounts.WithControllerDebug(cfg.App.Debug),
		accounts.WithControllerHandlerOptions(handlerOpts...),
	)

	app.srv = srv
	return nil
}

func newNotifier(app *App) accounts.Notifier {
	logger := app.GetLogger("accounts:notify")
	smtp := app.Config().SMTP

	var dispatcher notify.Dispatcher = notify.LogDispatcher{Logger: logger}
	if smtp.Host != "" {
		dispatcher = notify.NewSMTPDispatcher(smtp)
	}

	return notify.NewMailer(dispatcher, notify.WithLogger(logger))
}

func newActivitySink(ctx context.Context, app *App) accounts.ActivitySink {
	rcfg := app.Config().Redis
	if rcfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rcfg.Addr,
		Password: rcfg.Password,
		DB:       rcfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		app.GetLogger("accounts:activity").Warn("redis unavailable, activity stream disabled", "error", err)
		_ = client.Close()
		return nil
	}

	app.redis = client
	return activitysink.NewRedisStreamSink(client,
		activitysink.WithStream(rcfg.Stream),
		activitysink.WithMaxLen(rcfg.MaxLen),
		activitysink.WithMapOptions(activitymap.WithSource(app.Config().App.Name)),
	)
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
