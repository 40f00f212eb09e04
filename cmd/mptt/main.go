package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bluesky-social/mptt/nestedset"
	"github.com/bluesky-social/mptt/nodestore"
	"github.com/bluesky-social/mptt/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "mptt",
		Usage:   "nested-set forest storage engine",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string: sqlite://<path> or postgres://<user>:<pass>@<host>/<db>",
			Value:   "sqlite://data/mptt/mptt.sqlite",
			EnvVars: []string{"MPTT_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Usage:   "maximum number of open database connections (postgres only)",
			Value:   40,
			EnvVars: []string{"MPTT_MAX_DB_CONNECTIONS"},
		},
		&cli.BoolFlag{
			Name:    "pgx",
			Usage:   "talk to postgres through a native pgx pool instead of gorm",
			EnvVars: []string{"MPTT_PGX"},
		},
		&cli.Int64Flag{
			Name:    "base-level",
			Usage:   "level assigned to tree roots",
			Value:   1,
			EnvVars: []string{"MPTT_BASE_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "verify-mutations",
			Usage:   "re-validate every tree a mutation touches before committing",
			EnvVars: []string{"MPTT_VERIFY_MUTATIONS"},
		},
		&cli.IntFlag{
			Name:    "rebuild-parallelism",
			Usage:   "number of trees rebuilt at once by a full rebuild",
			Value:   4,
			EnvVars: []string{"MPTT_REBUILD_PARALLELISM"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MPTT_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: text or json",
			EnvVars: []string{"MPTT_LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		showCmd,
		insertCmd,
		deleteCmd,
		moveCmd,
		rebuildCmd,
		checkCmd,
		migrateCmd,
		seedCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

// configOTEL installs an OTLP HTTP trace exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is set (eg, http://localhost:4318). The
// returned func flushes and stops it.
//
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
func configOTEL(serviceName string) (func(), error) {
	ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if ep == "" {
		return func() {}, nil
	}
	slog.Info("setting up trace exporter", "endpoint", ep)

	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
			attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown trace exporter", "error", err)
		}
	}, nil
}

// backend is a node store the CLI can migrate and close.
type backend interface {
	nestedset.Store
	migrate(ctx context.Context) error
	close()
}

type gormBackend struct {
	*nodestore.GormStore
	closeDB func() error
}

func (b gormBackend) migrate(ctx context.Context) error { return b.Migrate() }
func (b gormBackend) close() {
	if err := b.closeDB(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

type pgxBackend struct {
	*nodestore.PgStore
}

func (b pgxBackend) migrate(ctx context.Context) error { return b.Migrate(ctx) }
func (b pgxBackend) close()                            { b.Close() }

func openStore(cctx *cli.Context, logger *slog.Logger, tracing bool) (backend, error) {
	dburl := cctx.String("database-url")

	if cctx.Bool("pgx") {
		if !strings.HasPrefix(dburl, "postgres://") && !strings.HasPrefix(dburl, "postgresql://") {
			return nil, fmt.Errorf("--pgx needs a postgres:// database URL")
		}
		store, err := nodestore.ConnectPg(cctx.Context, dburl)
		if err != nil {
			return nil, err
		}
		return pgxBackend{store}, nil
	}

	db, err := cliutil.SetupDatabase(dburl, cliutil.DatabaseOptions{
		MaxConnections: cctx.Int("max-db-connections"),
		Tracing:        tracing,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	return gormBackend{GormStore: nodestore.NewGormStore(db), closeDB: sqldb.Close}, nil
}

func engineConfig(cctx *cli.Context, logger *slog.Logger) nestedset.Config {
	cfg := nestedset.DefaultConfig()
	cfg.BaseLevel = cctx.Int64("base-level")
	cfg.VerifyMutations = cctx.Bool("verify-mutations")
	cfg.RebuildParallelism = cctx.Int("rebuild-parallelism")
	cfg.Logger = logger
	return cfg
}

// openEngine is the common setup for every command: logging, storage with
// the schema migrated, and the engine on top.
func openEngine(cctx *cli.Context, tracing bool) (*nestedset.Engine, func(), error) {
	logger, err := configLogger(cctx)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cctx, logger, tracing)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.migrate(cctx.Context); err != nil {
		store.close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}
	return nestedset.NewEngine(store, engineConfig(cctx, logger)), store.close, nil
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the nodes table",
	Action: func(cctx *cli.Context) error {
		_, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()
		slog.Info("database migrated")
		return nil
	},
}
