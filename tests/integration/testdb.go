//go:build integration

// Package integration runs the storefront against real PostgreSQL and
// RabbitMQ instances started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/migration"
	"github.com/storefront/backend/migrations"
)

// storefrontTables is every table the migrations create, children first.
var storefrontTables = []string{"order_lines", "orders", "cart_records", "outbox_events", "products"}

// TestDB is a connection to a migrated PostgreSQL database.
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	t     *testing.T
}

// shared is the container reused by NewSharedTestDB across the package.
var shared struct {
	sync.Mutex
	container *tcpostgres.PostgresContainer
	dsn       string
}

// NewTestDB gives the test its own container, for tests that change the
// schema itself.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	container, dsn := runPostgres(t, "storefront_test")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})
	tdb := connect(t, dsn)
	tdb.migrateUp()
	return tdb
}

// NewSharedTestDB connects to the package-wide container, starting and
// migrating it on first use, and empties every table.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	shared.Lock()
	if shared.container == nil {
		shared.container, shared.dsn = runPostgres(t, "storefront_shared_test")
		connect(t, shared.dsn).migrateUp()
	}
	dsn := shared.dsn
	shared.Unlock()

	tdb := connect(t, dsn)
	tdb.CleanTables()
	return tdb
}

// CleanupSharedContainer stops the shared container; TestMain calls it.
func CleanupSharedContainer() {
	shared.Lock()
	defer shared.Unlock()
	if shared.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = shared.container.Terminate(ctx)
	shared.container, shared.dsn = nil, ""
}

func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	stmt := "TRUNCATE TABLE " + strings.Join(storefrontTables, ", ") + " CASCADE"
	require.NoError(tdb.t, tdb.DB.Exec(stmt).Error)
}

// Migrator runs the embedded migrations against this database.
func (tdb *TestDB) Migrator() *migration.Migrator {
	tdb.t.Helper()
	m, err := migration.New(tdb.SqlDB, migrations.FS, zap.NewNop())
	require.NoError(tdb.t, err)
	return m
}

func (tdb *TestDB) migrateUp() {
	tdb.t.Helper()
	require.NoError(tdb.t, tdb.Migrator().Up(), "migrate up")
}

func runPostgres(t *testing.T, dbName string) (*tcpostgres.PostgresContainer, string) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		// postgres logs readiness twice: once for the init run, once for real
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return container, dsn
}

// connect opens a small pool on dsn. Set TEST_DB_DEBUG to see every
// statement in the test log.
func connect(t *testing.T, dsn string) *TestDB {
	t.Helper()

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.NewGormLogger(zaptest.NewLogger(t), level),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "connect to postgres")

	pool, err := db.DB()
	require.NoError(t, err)
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(2)
	t.Cleanup(func() { _ = pool.Close() })

	return &TestDB{DB: db, SqlDB: pool, t: t}
}
