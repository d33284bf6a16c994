// Package integration runs the ledger against a real PostgreSQL instance.
// It uses testcontainers to start a throwaway database per test and applies
// the embedded migrations, so the tests exercise the same schema production
// runs on. Set LEDGER_INTEGRATION_TESTS=1 to enable; without it every test
// in this package skips.
package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is one containerized Postgres with the ledger schema applied
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("LEDGER_INTEGRATION_TESTS") == "" {
		t.Skip("set LEDGER_INTEGRATION_TESTS=1 to run Postgres integration tests")
	}
}

// NewTestDB starts a fresh PostgreSQL container, connects GORM and applies
// the embedded migrations. The container is terminated on test cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connect(t, dsn)
	applyMigrations(t, sqlDB)

	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(testDB.Close)
	return testDB
}

// Close closes the connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tdb.Container.Terminate(ctx); err != nil {
			tdb.t.Logf("Warning: failed to terminate container: %v", err)
		}
	}
}

// CleanTables truncates the ledger tables between test cases
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	for _, table := range []string{"ledger_events", "ledger_outbox"} {
		require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE TABLE "+table).Error)
	}
}

func connect(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func applyMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()
	migrator, err := migration.New(sqlDB, nil)
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, migrator.Up(), "Failed to apply migrations")
}
