// Command migrate applies the embedded SQL migrations to the configured
// PostgreSQL database.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/migration"
	"github.com/storefront/backend/migrations"
	"go.uber.org/zap"
)

const usage = `usage: migrate [-log-level level] <command> [arg]

commands:
  up                apply every pending migration
  down              roll every migration back
  step <n>          move n migrations; negative n rolls back
  version           print the current version
  force <version>   record version as applied, clearing a dirty state

The database comes from config.toml and SHOP_DATABASE_* variables.
`

type command struct {
	arg string // name of the required integer argument, if any
	run func(m *migration.Migrator, n int, log *zap.Logger) error
}

var commands = map[string]command{
	"up":   {run: func(m *migration.Migrator, _ int, _ *zap.Logger) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ int, _ *zap.Logger) error { return m.Down() }},
	"step": {arg: "n", run: func(m *migration.Migrator, n int, _ *zap.Logger) error { return m.Steps(n) }},
	"force": {arg: "version", run: func(m *migration.Migrator, v int, _ *zap.Logger) error {
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, _ int, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err == nil {
			log.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		}
		return err
	}},
}

func main() {
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		flag.Usage()
		os.Exit(2)
	}
	var n int
	if cmd.arg != "" {
		var err error
		if n, err = strconv.Atoi(flag.Arg(1)); err != nil {
			fmt.Fprintf(os.Stderr, "migrate %s: <%s> must be an integer\n", name, cmd.arg)
			os.Exit(2)
		}
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", TimeFormat: "15:04:05"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(cmd, n, log); err != nil {
		log.Fatal("migration failed", zap.String("command", name), zap.Error(err))
	}
}

func run(cmd command, n int, log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrations target postgres; %s schemas come from AutoMigrate", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("reach database: %w", err)
	}

	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return cmd.run(m, n, log)
}
