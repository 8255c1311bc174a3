package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-mchanga/internal/config"
	"backend-mchanga/internal/db"
	"backend-mchanga/internal/logging"
	"backend-mchanga/internal/server"
	"backend-mchanga/internal/telematics"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

var log = logging.New("api")

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	args            []string
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(context.Context, db.Querier) error
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		args:            os.Args[1:],
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.Migrate,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cmd := newRootCommand(deps)
	cmd.SetArgs(deps.args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
}

func newRootCommand(deps mainDeps) *cobra.Command {
	root := &cobra.Command{
		Use:           "mchanga-api",
		Short:         "Fleet operations API with real-time tracking, alerts and service reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), deps)
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), deps)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := deps.loadConfig()
			pg, err := deps.connectPostgres(cfg)
			if err != nil {
				return err
			}
			defer pg.Close()
			return deps.migrate(cmd.Context(), pg)
		},
	})
	return root
}

func serve(ctx context.Context, deps mainDeps) error {
	cfg := deps.loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Error().Err(err).Msg("postgres connection failed")
	}
	if pg != nil && cfg.AutoMigrate {
		if err := deps.migrate(ctx, pg); err != nil {
			pg.Close()
			return err
		}
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	return deps.run(ctx, cfg, pg, rdb, signals, nil)
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

var connectMQTT = func(broker, clientID string) (telematics.Client, error) {
	return telematics.Connect(broker, clientID)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb)
	bridge := startTelematics(cfg, srv)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Close()
	if bridge != nil {
		bridge.Close()
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

func startTelematics(cfg config.Config, srv *server.Server) *telematics.Bridge {
	if cfg.MQTTBroker == "" {
		return nil
	}
	cli, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		log.Error().Err(err).Msg("telematics disabled")
		return nil
	}
	bridge := telematics.NewBridge(cli, cfg.MQTTLocationTopic, srv.Tracking,
		telematics.WithLogger(logging.New("telematics")),
		telematics.WithTimeout(cfg.MQTTUpdateTimeout))
	if err := bridge.Start(); err != nil {
		log.Error().Err(err).Msg("telematics disabled")
		cli.Disconnect(250)
		return nil
	}
	return bridge
}
