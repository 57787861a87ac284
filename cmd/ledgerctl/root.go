package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/config"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/logging"
)

// app is the state shared by every subcommand for one invocation.
type app struct {
	v       *viper.Viper
	fsys    afero.Fs
	out     io.Writer
	errOut  io.Writer
	logger  *zap.Logger
	ledger  *ledger.Ledger
	closers []func()
}

func newApp(fsys afero.Fs, out, errOut io.Writer) *app {
	return &app{v: config.New("server"), fsys: fsys, out: out, errOut: errOut}
}

// execute runs one invocation. Backends opened for it are released whatever
// the outcome; cobra skips PersistentPostRun when RunE fails.
func (a *app) execute(args []string) error {
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	var (
		cfgFile   string
		ephemeral bool
		verbose   bool
	)

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and operate the tourist identity ledger",
		Long: `ledgerctl opens the identity ledger snapshot directly, without the HTTP
server, and runs a single operation against it.

The snapshot backend and location come from the same configuration as the
server (configs/server.yaml, LEDGER_* environment variables) and can be
overridden with flags:

  ledgerctl --snapshot data/blockchain_data.json stats
  ledgerctl --backend redis --redis-url redis://localhost:6379/0 dump`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsLedger(cmd) {
				return nil
			}
			if cfgFile != "" {
				a.v.SetConfigFile(cfgFile)
			}
			if err := a.v.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if cfgFile != "" || !errors.As(err, &notFound) {
					return fmt.Errorf("read config: %w", err)
				}
			}
			if ephemeral {
				a.v.Set("ledger.backend", config.BackendMemory)
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{Level: level, Format: "console"})
			if err != nil {
				return err
			}
			a.logger = logger
			return a.open(cmd.Context())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default configs/server.yaml)")
	pf.String("backend", "", "snapshot backend: file, postgres, redis or memory")
	pf.String("snapshot", "", "snapshot file path for the file backend")
	pf.String("redis-url", "", "Redis URL for the redis backend")
	pf.String("database-url", "", "Postgres URL for the postgres backend")
	pf.String("format", "text", "output format: text or json")
	pf.BoolVar(&ephemeral, "ephemeral", false, "use an in-memory ledger that is discarded on exit")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	_ = a.v.BindPFlag("ledger.backend", pf.Lookup("backend"))
	_ = a.v.BindPFlag("ledger.path", pf.Lookup("snapshot"))
	_ = a.v.BindPFlag("ledger.redis_url", pf.Lookup("redis-url"))
	_ = a.v.BindPFlag("database.url", pf.Lookup("database-url"))
	_ = a.v.BindPFlag("output.format", pf.Lookup("format"))

	root.AddCommand(
		newStoreCmd(a),
		newLookupCmd(a),
		newVerifyCmd(a),
		newStatsCmd(a),
		newClearCmd(a),
		newDumpCmd(a),
		newVersionCmd(a),
	)
	return root
}

// needsLedger reports whether cmd operates on the ledger. Help, shell
// completion and version run without opening a backend.
func needsLedger(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// open builds the configured snapshot backend and loads the ledger from it.
func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var snap ledger.Snapshot
	switch backend := a.v.GetString("ledger.backend"); backend {
	case config.BackendFile, "":
		path := a.v.GetString("ledger.path")
		if path == "" {
			return errors.New("--snapshot or ledger.path is required for the file backend")
		}
		snap = ledger.NewFileSnapshot(a.fsys, path)
	case config.BackendMemory:
		snap = ledger.NewMemorySnapshot()
	case config.BackendRedis:
		opts, err := redis.ParseURL(a.v.GetString("ledger.redis_url"))
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, func() { client.Close() }) //nolint:errcheck
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		snap = ledger.NewRedisSnapshot(client, a.v.GetString("ledger.redis_prefix"))
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, a.v.GetString("database.url"))
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		snap = ledger.NewPostgresSnapshot(pool, a.logger)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	l, err := ledger.Open(ctx, snap, a.logger)
	if err != nil {
		return err
	}
	a.ledger = l
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) jsonOutput() bool {
	return a.v.GetString("output.format") == "json"
}
