// cmd/migrate applies the *.sql files in migrations/ to the service database.
// Progress is tracked in a golang-migrate compatible schema_migrations table
// (bigint version + dirty flag).
//
// Usage:
//
//	go run ./cmd/migrate
//	DATABASE_URL=postgres://... go run ./cmd/migrate
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/config"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/logging"
)

func main() {
	logger, err := logging.New(logging.Options{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	v := config.New("server")
	v.SetDefault("migrations.dir", "migrations")
	if err := readConfig(v); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	if err := run(context.Background(), v, afero.NewOsFs(), logger); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}
}

// readConfig reads the optional config file. Session settings are not
// validated here; migrate only needs database.url.
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func run(ctx context.Context, v *viper.Viper, fsys afero.Fs, logger *zap.Logger) error {
	db, err := pgxpool.New(ctx, v.GetString("database.url"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to database")

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version bigint NOT NULL,
			dirty   boolean NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	dir := v.GetString("migrations.dir")
	files, err := migrationFiles(fsys, dir)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range files {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`,
			m.version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check %s: %w", m.name, err)
		}
		if exists {
			logger.Debug("skip migration", zap.String("file", m.name))
			continue
		}

		sql, err := afero.ReadFile(fsys, path.Join(dir, m.name))
		if err != nil {
			return fmt.Errorf("read %s: %w", m.name, err)
		}

		// dirty=true before applying so a crash is visible.
		if _, err := db.Exec(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
			 ON CONFLICT (version) DO UPDATE SET dirty = true`, m.version,
		); err != nil {
			return fmt.Errorf("mark dirty %s: %w", m.name, err)
		}

		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", m.name, err)
		}

		if _, err := db.Exec(ctx,
			`UPDATE schema_migrations SET dirty = false WHERE version = $1`, m.version,
		); err != nil {
			return fmt.Errorf("mark clean %s: %w", m.name, err)
		}

		logger.Info("applied migration", zap.String("file", m.name), zap.Int64("version", m.version))
		applied++
	}

	logger.Info("migrations complete", zap.Int("applied", applied), zap.Int("total", len(files)))
	return nil
}

type migration struct {
	name    string
	version int64
}

// migrationFiles lists the up migrations in dir ordered by version.
// Down migrations (*.down.sql) are ignored.
func migrationFiles(fsys afero.Fs, dir string) ([]migration, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	seen := make(map[int64]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || strings.HasSuffix(e.Name(), ".down.sql") {
			continue
		}
		ver, err := versionFromFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse version from %s: %w", e.Name(), err)
		}
		if prev, dup := seen[ver]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", ver, prev, e.Name())
		}
		seen[ver] = e.Name()
		out = append(out, migration{name: e.Name(), version: ver})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// versionFromFile extracts the leading integer from a migration filename.
// "001_init.up.sql" → 1
func versionFromFile(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fs.ErrInvalid
	}
	return strconv.ParseInt(prefix, 10, 64)
}
