package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database is the shared gorm handle plus the pool underneath it.
type Database struct {
	DB   *gorm.DB
	pool *sql.DB
}

type DatabaseOption func(*gorm.Config)

// WithGormLogger routes gorm's statement log through l. Without it gorm is
// silent.
func WithGormLogger(l gormlogger.Interface) DatabaseOption {
	return func(c *gorm.Config) { c.Logger = l }
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// NewDatabase opens and pings the configured database.
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialector.Name(), err)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, err
	}

	configurePool(pool, cfg)
	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialector.Name(), err)
	}
	return &Database{DB: db, pool: pool}, nil
}

func configurePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	open := cfg.MaxOpenConns
	if cfg.Driver == "sqlite" {
		// one writer at a time
		open = 1
	}
	pool.SetMaxOpenConns(open)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

func (d *Database) Close() error {
	return d.pool.Close()
}

// PingContext backs the database entry of GET /health.
func (d *Database) PingContext(ctx context.Context) error {
	return d.pool.PingContext(ctx)
}

func (d *Database) Stats() sql.DBStats {
	return d.pool.Stats()
}

// AutoMigrate creates the storefront tables from the gorm models. Postgres
// deployments use cmd/migrate instead.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(models.All()...)
}
